package agentbus

import (
	"log/slog"
	"time"

	"github.com/nickmadden/agentbus/pkg/agentbus/config"
	"github.com/nickmadden/agentbus/pkg/agentbus/observability"
	"github.com/nickmadden/agentbus/pkg/agentbus/sink"
)

type options struct {
	replayLimit     int
	flushInterval   time.Duration
	healthInterval  time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
	metrics         observability.MetricsRecorder
	spans           observability.SpanManager
}

func defaultOptions() options {
	return options{
		replayLimit:     DefaultReplayLimit,
		flushInterval:   DefaultFlushInterval,
		healthInterval:  DefaultHealthInterval,
		shutdownTimeout: sink.DefaultShutdownTimeout,
		logger:          slog.Default(),
		metrics:         observability.NoopMetrics{},
		spans:           observability.NoopSpanManager{},
	}
}

// Option configures a Bus at construction time.
type Option func(*options)

// WithReplayLimit sets the replay window capacity. Values below 100 are
// raised to 100.
func WithReplayLimit(limit int) Option {
	return func(o *options) {
		o.replayLimit = limit
	}
}

// WithFlushInterval sets the debounce window between an emission and the
// drain that delivers it.
func WithFlushInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.flushInterval = d
		}
	}
}

// WithHealthInterval sets the minimum spacing between derived health
// events per session. Zero emits on every counter change, which tests use
// to observe health deterministically.
func WithHealthInterval(d time.Duration) Option {
	return func(o *options) {
		o.healthInterval = d
	}
}

// WithShutdownTimeout bounds how long sink removal waits for a sink's
// Shutdown before abandoning it.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithLogger sets the structured logger used for internal diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder. Use
// observability.NewMetricsRecorder for the OpenTelemetry implementation.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithSpans sets the span manager used to trace flush and shutdown.
func WithSpans(s observability.SpanManager) Option {
	return func(o *options) {
		if s != nil {
			o.spans = s
		}
	}
}

// OptionsFromConfig builds bus options from a configuration section.
//
// Recognized keys: replay_limit (int), flush_interval, health_interval and
// shutdown_timeout (durations; bare ints are milliseconds).
func OptionsFromConfig(cfg config.Config) []Option {
	var opts []Option
	if v := cfg.Int("replay_limit", 0); v > 0 {
		opts = append(opts, WithReplayLimit(v))
	}
	if v := cfg.Duration("flush_interval", 0); v > 0 {
		opts = append(opts, WithFlushInterval(v))
	}
	if cfg.Has("health_interval") {
		opts = append(opts, WithHealthInterval(cfg.Duration("health_interval", DefaultHealthInterval)))
	}
	if v := cfg.Duration("shutdown_timeout", 0); v > 0 {
		opts = append(opts, WithShutdownTimeout(v))
	}
	return opts
}
