package eventbus

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/functree/pkg/logging"
)

type nodeEvent struct {
	name string
}

type otherEvent struct{}

func bufferedLogger(level logrus.Level) (*logrus.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(buf)
	log.SetLevel(level)
	return log, buf
}

func TestPublisher_PublishWarnsWithoutSubscribers(t *testing.T) {
	log, buf := bufferedLogger(logrus.WarnLevel)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *nodeEvent) {
		t.Error("should not be called")
	})

	publisher.Publish(&otherEvent{})

	require.Contains(t, buf.String(), "eventbus.Publish: no matching subscribers")
}

func TestPublisher_SubscribeDelivers(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.WarnLevel))
	var got string
	publisher.Subscribe(func(e *nodeEvent) { got = e.name })

	publisher.Publish(&nodeEvent{name: "node.created"})

	require.Equal(t, "node.created", got)
	require.Equal(t, 1, publisher.SubscribersCount())
}

func TestPublisher_UnsubscribeAndClear(t *testing.T) {
	publisher := NewEventPublisher(nil)
	first := func(e *nodeEvent) {}
	second := func(e *otherEvent) {}
	publisher.Subscribe(first)
	publisher.Subscribe(second)

	publisher.Unsubscribe(first)
	require.Equal(t, 1, publisher.SubscribersCount())

	publisher.Clear()
	require.Equal(t, 0, publisher.SubscribersCount())
}

func TestMatchSignature(t *testing.T) {
	require.True(t, MatchSignature(func(e *nodeEvent) {}, []interface{}{&nodeEvent{}}))
	require.False(t, MatchSignature(func(e *nodeEvent) {}, []interface{}{&otherEvent{}}))
	require.False(t, MatchSignature(func(e *nodeEvent) {}, []interface{}{}))
	require.False(t, MatchSignature(func(e *nodeEvent) {}, []interface{}{&nodeEvent{}, &nodeEvent{}}))
	require.True(t, MatchSignature(func(ctx context.Context) {}, []interface{}{context.Background()}))
	require.True(t, MatchSignature(func(e *nodeEvent) {}, []interface{}{nil}))
	require.False(t, MatchSignature("not a func", []interface{}{}))
}

func TestPublisher_PanicRecovery(t *testing.T) {
	t.Run("other handlers still run", func(t *testing.T) {
		log, buf := bufferedLogger(logrus.ErrorLevel)
		publisher := NewEventPublisher(log)
		called := false
		publisher.Subscribe(func(e *nodeEvent) { panic("boom") })
		publisher.Subscribe(func(e *nodeEvent) { called = true })

		require.NotPanics(t, func() { publisher.Publish(&nodeEvent{}) })
		require.True(t, called)
		require.Contains(t, buf.String(), "panicked")
		require.Contains(t, buf.String(), "boom")
	})

	t.Run("all handlers panicking counts as unhandled", func(t *testing.T) {
		log, buf := bufferedLogger(logrus.WarnLevel)
		publisher := NewEventPublisher(log)
		publisher.Subscribe(func(e *nodeEvent) { panic("always") })

		publisher.Publish(&nodeEvent{})

		require.Contains(t, buf.String(), "no matching subscribers")
	})
}

func TestPublisher_PublishE(t *testing.T) {
	t.Run("no subscribers", func(t *testing.T) {
		publisher := NewEventPublisher(nil).(EventBusWithError)
		require.ErrorIs(t, publisher.PublishE(&nodeEvent{}), ErrNoSubscribers)
	})

	t.Run("joins handler errors", func(t *testing.T) {
		publisher := NewEventPublisher(nil).(EventBusWithError)
		err1 := errors.New("err1")
		err2 := errors.New("err2")
		publisher.Subscribe(func(e *nodeEvent) error { return err1 })
		publisher.Subscribe(func(e *nodeEvent) error { return err2 })

		err := publisher.PublishE(&nodeEvent{})
		require.ErrorIs(t, err, err1)
		require.ErrorIs(t, err, err2)
	})

	t.Run("panic becomes an error", func(t *testing.T) {
		publisher := NewEventPublisher(nil).(EventBusWithError)
		called := false
		publisher.Subscribe(func(e *nodeEvent) error { panic("boom") })
		publisher.Subscribe(func(e *nodeEvent) error { called = true; return nil })

		require.Error(t, publisher.PublishE(&nodeEvent{}))
		require.True(t, called)
	})

	t.Run("invalid return signature", func(t *testing.T) {
		publisher := NewEventPublisher(nil).(EventBusWithError)
		publisher.Subscribe(func(e *nodeEvent) int { return 1 })
		require.ErrorIs(t, publisher.PublishE(&nodeEvent{}), ErrInvalidHandlerReturn)
	})
}

func TestPublisher_ConcurrentSubscribeAndPublish(t *testing.T) {
	publisher := NewEventPublisher(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			publisher.Subscribe(func(e *nodeEvent) {})
		}()
		go func() {
			defer wg.Done()
			publisher.Publish(&nodeEvent{})
		}()
	}
	wg.Wait()
	require.Equal(t, 20, publisher.SubscribersCount())
}
