// Package server exposes a read-only HTTP view of the sample collection,
// Prometheus metrics and a background dispatcher that delivers spooled
// reminders when they come due.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"curetrack/internal/infra/scheduler/spool"
	"curetrack/internal/logging"
	"curetrack/pkg/domain"
)

// DefaultDispatchInterval is used when no interval is configured.
const DefaultDispatchInterval = 30 * time.Second

const shutdownTimeout = 5 * time.Second

// Dispatcher drains reminders whose time has come.
type Dispatcher interface {
	Dispatch(ctx context.Context, now time.Time, deliver func(spool.Entry) error) (int, error)
}

// Notifier delivers one reminder to the user.
type Notifier func(ctx context.Context, n domain.Notification) error

// SampleSource is the part of the lifecycle service the HTTP API reads from.
type SampleSource interface {
	List(ctx context.Context) ([]domain.Sample, error)
	Get(ctx context.Context, id string) (domain.Sample, error)
	Location() *time.Location
	Now() time.Time
}

// Server runs the HTTP API and the reminder dispatcher.
type Server struct {
	samples    SampleSource
	dispatcher Dispatcher
	notify     Notifier
	gatherer   prometheus.Gatherer
	logger     logging.Logger
	addr       string
	interval   time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithDispatcher enables reminder delivery from d every interval.
func WithDispatcher(d Dispatcher, interval time.Duration) Option {
	return func(s *Server) {
		s.dispatcher = d
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithNotifier replaces the default notifier, which only logs.
func WithNotifier(n Notifier) Option {
	return func(s *Server) {
		if n != nil {
			s.notify = n
		}
	}
}

// WithGatherer selects the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.logger = logging.OrNoop(l) }
}

// New builds a Server over samples.
func New(samples SampleSource, opts ...Option) *Server {
	s := &Server{
		samples:  samples,
		gatherer: prometheus.DefaultGatherer,
		logger:   logging.Noop(),
		addr:     ":8080",
		interval: DefaultDispatchInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notify == nil {
		s.notify = s.logNotification
	}
	return s
}

func (s *Server) logNotification(_ context.Context, n domain.Notification) error {
	s.logger.Info(n.Title, "sample_id", n.SampleID, "kind", string(n.Kind), "channel", n.Channel, "body", n.Body)
	return nil
}

// DispatchOnce delivers every reminder due at the current time.
func (s *Server) DispatchOnce(ctx context.Context) (int, error) {
	if s.dispatcher == nil {
		return 0, nil
	}
	return s.dispatcher.Dispatch(ctx, s.samples.Now(), func(e spool.Entry) error {
		return s.notify(ctx, e.Notification)
	})
}

func (s *Server) dispatchLoop(ctx context.Context) {
	if s.dispatcher == nil {
		return
	}
	tick := func() {
		sent, err := s.DispatchOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("reminder dispatch incomplete", "sent", sent, "err", err)
			return
		}
		if sent > 0 {
			s.logger.Info("reminders delivered", "sent", sent)
		}
	}
	tick()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		s.dispatchLoop(loopCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			serveErr = fmt.Errorf("shutdown: %w", err)
		}
	}
	stopLoop()
	<-loopDone
	s.logger.Info("http server stopped")
	return serveErr
}
