package outbox

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type RelayOptions struct {
	PollInterval    time.Duration
	BatchSize       int
	LockTTL         time.Duration
	MaxAttempts     int
	SingleActive    bool
	MaxBackoff      time.Duration
	JitterMax       time.Duration
	LastErrorMaxLen int
	DispatchTimeout time.Duration

	// Retention enables cleanup of published rows older than this. Zero keeps them.
	Retention time.Duration

	Logger *logrus.Entry
	Rand   *rand.Rand
}

func (o *RelayOptions) setDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.LockTTL <= 0 {
		o.LockTTL = time.Minute
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 25
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = time.Minute
	}
	if o.JitterMax < 0 {
		o.JitterMax = 0
	}
	if o.LastErrorMaxLen <= 0 {
		o.LastErrorMaxLen = 2048
	}
	if o.DispatchTimeout <= 0 {
		o.DispatchTimeout = 30 * time.Second
	}
	if o.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		o.Logger = logrus.NewEntry(l)
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
	}
}

// Relay polls one outbox table and hands committed events to a Dispatcher.
// Rows are claimed with FOR UPDATE SKIP LOCKED, so several relays may share a
// table; SingleActive additionally elects one relay with an advisory lock.
type Relay struct {
	pool       *pgxpool.Pool
	table      pgx.Identifier
	dispatcher Dispatcher
	opts       RelayOptions
	lockKey    int64
	label      string
	m          *metrics
}

func NewRelay(pool *pgxpool.Pool, table pgx.Identifier, dispatcher Dispatcher, opts RelayOptions) (*Relay, error) {
	if pool == nil {
		return nil, invalidConfig("pool is required")
	}
	if len(table) == 0 {
		return nil, invalidConfig("table is required")
	}
	if dispatcher == nil {
		return nil, invalidConfig("dispatcher is required")
	}
	opts.setDefaults()
	label := TableLabel(table)
	return &Relay{
		pool:       pool,
		table:      table,
		dispatcher: dispatcher,
		opts:       opts,
		lockKey:    advisoryLockKey("outbox:" + label),
		label:      label,
		m:          getMetrics(),
	}, nil
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	if !r.opts.SingleActive {
		r.m.relayLeader.WithLabelValues(r.label).Set(1)
		return r.loop(ctx)
	}
	for {
		conn, err := r.pool.Acquire(ctx)
		if err == nil {
			var leader bool
			leader, err = r.tryLock(ctx, conn)
			if err == nil && leader {
				r.m.relayLeader.WithLabelValues(r.label).Set(1)
				r.opts.Logger.WithField("table", r.label).Info("outbox: relay became leader")
				err = r.loop(ctx)
				_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1::bigint)`, r.lockKey)
				conn.Release()
				r.m.relayLeader.WithLabelValues(r.label).Set(0)
				return err
			}
			conn.Release()
		}
		if err != nil && ctx.Err() == nil {
			r.opts.Logger.WithError(err).Warn("outbox: leader election failed")
		}
		r.m.relayLeader.WithLabelValues(r.label).Set(0)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.opts.PollInterval):
		}
	}
}

func (r *Relay) loop(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, err := r.Drain(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.opts.Logger.WithError(err).Warn("outbox: relay tick failed")
		}
		if err := r.observe(ctx); err != nil {
			r.opts.Logger.WithError(err).Debug("outbox: housekeeping failed")
		}
	}
}

type claimedRow struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Topic    string
	Payload  []byte
	EventID  uuid.UUID
	Sequence int64
	Attempts int
}

// Drain claims one batch, dispatches it and returns the number of events
// delivered successfully.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	rows, err := r.claim(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, c := range rows {
		dispatchCtx, cancel := context.WithTimeout(ctx, r.opts.DispatchTimeout)
		started := time.Now()
		err := r.dispatcher.Dispatch(dispatchCtx, DispatchedMessage{
			Meta: Meta{
				Table:    r.table,
				TenantID: c.TenantID,
				Topic:    c.Topic,
				EventID:  c.EventID,
				Sequence: c.Sequence,
				Attempts: c.Attempts,
			},
			Payload: c.Payload,
		})
		cancel()

		result := "success"
		if err != nil {
			result = "failure"
		}
		r.m.dispatchTotal.WithLabelValues(r.label, c.Topic, result).Inc()
		r.m.dispatchLatency.WithLabelValues(r.label, c.Topic, result).Observe(time.Since(started).Seconds())

		if err == nil {
			delivered++
			if err := r.exec(ctx, `SET published_at = now(), locked_at = NULL, last_error = NULL`, c.ID); err != nil {
				r.log(c).WithError(err).Warn("outbox: ack failed")
			}
			continue
		}

		lastErr := truncate(err.Error(), r.opts.LastErrorMaxLen)
		if c.Attempts >= r.opts.MaxAttempts {
			r.m.deadTotal.WithLabelValues(r.label, c.Topic).Inc()
			r.log(c).WithError(err).Error("outbox: event is dead")
			if err := r.exec(ctx, `SET locked_at = NULL, last_error = $2`, c.ID, lastErr); err != nil {
				r.log(c).WithError(err).Warn("outbox: dead update failed")
			}
			continue
		}
		next := time.Now().Add(retryDelay(c.Attempts, r.opts.MaxBackoff, r.opts.Rand, r.opts.JitterMax))
		if err := r.exec(ctx, `SET locked_at = NULL, last_error = $2, available_at = $3`, c.ID, lastErr, next); err != nil {
			r.log(c).WithError(err).Warn("outbox: nack failed")
		}
	}
	return delivered, nil
}

func (r *Relay) claim(ctx context.Context, now time.Time) ([]claimedRow, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	table := r.table.Sanitize()
	rows, err := tx.Query(ctx, fmt.Sprintf(`
SELECT id, tenant_id, topic, payload, event_id, sequence, attempts
FROM %s
WHERE published_at IS NULL
  AND available_at <= $1
  AND attempts < $2
  AND (locked_at IS NULL OR locked_at < $3)
ORDER BY available_at, sequence
LIMIT $4
FOR UPDATE SKIP LOCKED`, table), now, r.opts.MaxAttempts, now.Add(-r.opts.LockTTL), r.opts.BatchSize)
	if err != nil {
		return nil, errors.Wrap(err, "outbox claim")
	}
	claimed, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (claimedRow, error) {
		var c claimedRow
		err := row.Scan(&c.ID, &c.TenantID, &c.Topic, &c.Payload, &c.EventID, &c.Sequence, &c.Attempts)
		c.Attempts++
		return c, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "outbox claim scan")
	}
	if len(claimed) > 0 {
		ids := make([]uuid.UUID, len(claimed))
		for i, c := range claimed {
			ids[i] = c.ID
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`UPDATE %s SET locked_at = $1, attempts = attempts + 1 WHERE id = ANY($2)`, table),
			now, pgtype.FlatArray[uuid.UUID](ids)); err != nil {
			return nil, errors.Wrap(err, "outbox claim lock")
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return claimed, nil
}

// exec runs "UPDATE <table> <set> WHERE id = $1" for an unpublished row.
func (r *Relay) exec(ctx context.Context, set string, id uuid.UUID, args ...any) error {
	q := fmt.Sprintf(`UPDATE %s %s WHERE id = $1 AND published_at IS NULL`, r.table.Sanitize(), set)
	_, err := r.pool.Exec(ctx, q, append([]any{id}, args...)...)
	return err
}

type Stats struct {
	Pending   int64 `json:"pending"`
	Dead      int64 `json:"dead"`
	Published int64 `json:"published"`
}

// Stats counts rows by delivery state. Dead rows are unpublished rows that
// used up MaxAttempts.
func (r *Relay) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`
SELECT
	count(*) FILTER (WHERE published_at IS NULL AND attempts < $1),
	count(*) FILTER (WHERE published_at IS NULL AND attempts >= $1),
	count(*) FILTER (WHERE published_at IS NOT NULL)
FROM %s`, r.table.Sanitize()), r.opts.MaxAttempts).Scan(&st.Pending, &st.Dead, &st.Published)
	if err != nil {
		return Stats{}, errors.Wrap(err, "outbox stats")
	}
	return st, nil
}

// observe refreshes the pending gauge and removes published rows past retention.
func (r *Relay) observe(ctx context.Context) error {
	table := r.table.Sanitize()
	var pending int64
	if err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s WHERE published_at IS NULL`, table)).Scan(&pending); err != nil {
		return errors.Wrap(err, "outbox pending count")
	}
	r.m.pending.WithLabelValues(r.label).Set(float64(pending))

	if r.opts.Retention <= 0 {
		return nil
	}
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE published_at IS NOT NULL AND published_at < $1`, table),
		time.Now().Add(-r.opts.Retention))
	if err != nil {
		return errors.Wrap(err, "outbox cleanup")
	}
	r.m.cleanedTotal.WithLabelValues(r.label).Add(float64(tag.RowsAffected()))
	return nil
}

func (r *Relay) tryLock(ctx context.Context, conn *pgxpool.Conn) (bool, error) {
	var ok bool
	err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1::bigint)`, r.lockKey).Scan(&ok)
	return ok, err
}

func (r *Relay) log(c claimedRow) *logrus.Entry {
	return r.opts.Logger.WithFields(logrus.Fields{
		"table":     r.label,
		"topic":     c.Topic,
		"event_id":  c.EventID.String(),
		"tenant_id": c.TenantID.String(),
		"sequence":  c.Sequence,
		"attempts":  c.Attempts,
	})
}

// retryDelay is 1s * 2^(attempts-1), capped at maxBackoff, plus up to
// maxJitter of random jitter.
func retryDelay(attempts int, maxBackoff time.Duration, rnd *rand.Rand, maxJitter time.Duration) time.Duration {
	if attempts <= 0 {
		return 0
	}
	d := time.Duration(math.Pow(2, float64(attempts-1)) * float64(time.Second))
	if d > maxBackoff || d <= 0 {
		d = maxBackoff
	}
	if rnd != nil && maxJitter > 0 {
		d += time.Duration(rnd.Int63n(int64(maxJitter) + 1)) //nolint:gosec
	}
	return d
}

func truncate(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	b := []byte(s[:maxBytes])
	for len(b) > 0 && !utf8.Valid(b) {
		b = b[:len(b)-1]
	}
	return string(b)
}

func advisoryLockKey(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64()) //nolint:gosec
}
