package middleware

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/iota-uz/functree/pkg/composables"
	"github.com/iota-uz/functree/pkg/configuration"
	"github.com/iota-uz/functree/pkg/constants"
	"github.com/iota-uz/functree/pkg/httpapi"
	"github.com/iota-uz/functree/pkg/routing"
)

type LoggerOptions struct {
	LogRequestBody  bool
	LogResponseBody bool
	MaxBodyLength   int

	Entrypoint    string
	AllowlistPath string
	Repanic       bool
}

func DefaultLoggerOptions() LoggerOptions {
	return LoggerOptions{
		LogRequestBody:  true,
		LogResponseBody: false,
		MaxBodyLength:   512,
	}
}

type responseCaptureWriter struct {
	http.ResponseWriter
	statusCode    int
	statusWritten bool
	body          *bytes.Buffer
	limit         int
}

func (w *responseCaptureWriter) WriteHeader(code int) {
	if !w.statusWritten {
		w.statusCode = code
		w.statusWritten = true
		w.ResponseWriter.WriteHeader(code)
	}
}

// Status returns the HTTP status code
func (w *responseCaptureWriter) Status() int {
	if w.statusCode == 0 {
		return http.StatusOK
	}
	return w.statusCode
}

func (w *responseCaptureWriter) Write(b []byte) (int, error) {
	if !w.statusWritten {
		w.WriteHeader(http.StatusOK)
	}
	if room := w.limit - w.body.Len(); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		w.body.Write(b[:room])
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseCaptureWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack keeps websocket upgrades working behind the logger.
func (w *responseCaptureWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}

func wrapResponseWriter(w http.ResponseWriter, limit int) *responseCaptureWriter {
	return &responseCaptureWriter{
		ResponseWriter: w,
		body:           &bytes.Buffer{},
		limit:          limit,
	}
}

func getRealIP(r *http.Request, conf *configuration.Configuration) string {
	if v := r.Header.Get(conf.RealIPHeader); v != "" {
		return v
	}
	return r.RemoteAddr
}

func getRequestID(r *http.Request, conf *configuration.Configuration) string {
	if v := r.Header.Get(conf.RequestIDHeader); v != "" {
		return v
	}
	return uuid.New().String()
}

var tracer = otel.Tracer("functree-middleware")

func TracedMiddleware(name string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(
				r.Context(),
				"middleware."+name,
				trace.WithAttributes(
					attribute.String("middleware.name", name),
					attribute.String("http.method", r.Method),
					attribute.String("http.url", r.URL.String()),
				),
			)
			defer span.End()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func shouldLogBody(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}

func truncate(b []byte, limit int) string {
	if limit > 0 && len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

// WithLogger opens the root span of every request, attaches a request scoped
// logrus entry and request id to the context and turns panics into a 500.
func WithLogger(logger *logrus.Logger, opts LoggerOptions) mux.MiddlewareFunc {
	conf := configuration.Use()
	rules, err := routing.LoadAllowlist(opts.AllowlistPath, opts.Entrypoint)
	if err != nil {
		rules = nil
	}
	classifier := routing.NewClassifier(rules)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := getRequestID(r, conf)

			fieldsLogger := logger.WithFields(logrus.Fields{
				"request-id": requestID,
				"path":       r.RequestURI,
				"method":     r.Method,
			})
			fieldsLogger.WithFields(logrus.Fields{
				"host":       r.Host,
				"ip":         getRealIP(r, conf),
				"user-agent": r.UserAgent(),
			}).Info("request started")

			if opts.LogRequestBody && r.Body != nil && shouldLogBody(r.Header.Get("Content-Type")) &&
				(r.Method == http.MethodPost || r.Method == http.MethodPatch) {
				raw, err := io.ReadAll(r.Body)
				if err != nil {
					fieldsLogger.WithError(err).Error("failed to read request-body")
					http.Error(w, "failed to read request-body", http.StatusInternalServerError)
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(raw))
				fieldsLogger.WithField("request-body", truncate(raw, opts.MaxBodyLength)).Debug("request-body captured")
			}

			propagator := propagation.TraceContext{}
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(
				ctx,
				"http.request",
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.route", r.URL.Path),
					attribute.String("http.request_id", requestID),
					attribute.String("net.peer.ip", getRealIP(r, conf)),
				),
			)
			defer span.End()

			if spanContext := span.SpanContext(); spanContext.HasTraceID() {
				traceID := spanContext.TraceID().String()
				w.Header().Set("X-Trace-Id", traceID)
				fieldsLogger = fieldsLogger.WithField("trace-id", traceID)
			}
			w.Header().Set("X-Request-Id", requestID)

			ctx = composables.WithLogger(ctx, fieldsLogger)
			ctx = composables.WithRequestID(ctx, requestID)
			ctx = contextWithStart(ctx, start)

			wrapped := wrapResponseWriter(w, opts.MaxBodyLength)

			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				fieldsLogger.WithFields(logrus.Fields{
					"panic":    recovered,
					"stack":    string(debug.Stack()),
					"duration": time.Since(start),
				}).Error("panic recovered in request handler")
				span.SetStatus(codes.Error, "panic")

				if !wrapped.statusWritten {
					switch classifier.ClassifyPath(r.URL.Path) {
					case routing.RouteClassInternalAPI, routing.RouteClassOps:
						_ = httpapi.NewError(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error").
							WithRequestID(requestID).
							WithPath(r).
							Write(wrapped)
					default:
						http.Error(wrapped, "Internal Server Error", http.StatusInternalServerError)
					}
				}
				if opts.Repanic {
					panic(recovered)
				}
			}()

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			statusCode := wrapped.Status()
			duration := time.Since(start)
			fieldsLogger.WithFields(logrus.Fields{
				"duration":     duration,
				"status-code":  statusCode,
				"status-class": statusCode / 100,
			}).Info("request completed")
			span.SetAttributes(
				attribute.Int64("http.request_duration_ms", duration.Milliseconds()),
				attribute.Int("http.status_code", statusCode),
			)
			if statusCode >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(statusCode))
			}
			if opts.LogResponseBody && shouldLogBody(wrapped.Header().Get("Content-Type")) {
				fieldsLogger.WithField("response-body", wrapped.body.String()).Debug("response-body captured")
			}
		})
	}
}

func contextWithStart(ctx context.Context, start time.Time) context.Context {
	return context.WithValue(ctx, constants.RequestStart, start)
}
