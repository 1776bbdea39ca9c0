// Package registry aggregates the capabilities available to the pipeline.
// It routes invocations to the owning capability, validates parameters
// against the declared spec before dispatch, records metrics, and recovers
// from capability panics so a misbehaving tool cannot take down a query.
package registry

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/werkbank-dev/werkbank/pkg/tools"
)

// Prometheus metrics for capability execution.
var (
	toolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "werkbank_tool_executions_total",
			Help: "Total tool executions",
		},
		[]string{"tool", "status"},
	)

	toolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "werkbank_tool_duration_seconds",
			Help:    "Tool execution duration",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"tool"},
	)
)

func init() {
	prometheus.MustRegister(
		toolExecutions,
		toolDuration,
	)
}

// CollectorSource is implemented by capabilities that expose their own
// Prometheus collectors. The registry registers them on Register; a
// collector that is already registered is logged and skipped.
type CollectorSource interface {
	Collectors() []prometheus.Collector
}

// Registry holds the registered capabilities and dispatches invocations
// to them. Capabilities register at startup; lookups are concurrent-safe.
type Registry struct {
	mu sync.RWMutex

	// order keeps tool names in registration order for stable listings.
	order []string

	caps map[string]tools.Capability
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		caps: make(map[string]tools.Capability),
	}
}

// Register adds a capability under its spec name. Names are resolved on a
// first-come, first-served basis: if two capabilities declare the same
// name, the first registered one wins and a warning is logged.
//
// Any capability-specific Prometheus collectors are also registered.
func (r *Registry) Register(c tools.Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()

	spec := c.Spec()
	if _, ok := r.caps[spec.Name]; ok {
		slog.Warn("tool name conflict, keeping first registration",
			"tool", spec.Name,
		)
		return
	}
	r.caps[spec.Name] = c
	r.order = append(r.order, spec.Name)

	if cs, ok := c.(CollectorSource); ok {
		for _, col := range cs.Collectors() {
			if err := prometheus.Register(col); err != nil {
				// Already registered is not an error worth crashing for.
				slog.Debug("collector already registered", "tool", spec.Name, "error", err)
			}
		}
	}

	slog.Info("registered tool",
		"tool", spec.Name,
		"parameters", len(spec.Parameters),
	)
}

// Has reports whether a capability with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.caps[name]
	return ok
}

// Lookup returns the capability registered under name.
func (r *Registry) Lookup(name string) (tools.Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[name]
	return c, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Specs returns the capability declarations in registration order. The
// decision oracle adapter serializes these into its prompt.
func (r *Registry) Specs() []tools.CapabilitySpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]tools.CapabilitySpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.caps[name].Spec())
	}
	return out
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caps)
}

// Execute validates the invocation's parameters against the capability's
// spec, fills in declared defaults, and runs the capability. Every failure
// mode is reported as a failed Result rather than an error: the pipeline
// keeps going when a single tool misfires.
func (r *Registry) Execute(ctx context.Context, inv tools.Invocation, run *tools.RunContext) (result tools.Result) {
	r.mu.RLock()
	c, ok := r.caps[inv.Tool]
	r.mu.RUnlock()

	if !ok {
		toolExecutions.WithLabelValues(inv.Tool, "unknown").Inc()
		return tools.Failf(inv.Tool, "no registered capability handles tool %q", inv.Tool)
	}

	spec := c.Spec()
	if errs := tools.ValidateParams(spec, inv.Params); len(errs) > 0 {
		toolExecutions.WithLabelValues(inv.Tool, "invalid_params").Inc()
		return tools.Fail(inv.Tool, strings.Join(errs, ", "))
	}
	params := tools.ApplyDefaults(spec, inv.Params)

	start := time.Now()

	// Recover from panics inside the capability.
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool panicked",
				"tool", inv.Tool,
				"panic", rec,
			)
			result = tools.Failf(inv.Tool, "internal error: tool %q panicked", inv.Tool)

			toolExecutions.WithLabelValues(inv.Tool, "panic").Inc()
			toolDuration.WithLabelValues(inv.Tool).Observe(time.Since(start).Seconds())
		}
	}()

	result = c.Execute(ctx, params, run)
	duration := time.Since(start).Seconds()

	status := "success"
	if !result.Success {
		status = "tool_error"
	}

	toolExecutions.WithLabelValues(inv.Tool, status).Inc()
	toolDuration.WithLabelValues(inv.Tool).Observe(duration)

	return result
}

// Close closes all registered capabilities that hold resources, returning
// the last error encountered.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for _, name := range r.order {
		closer, ok := r.caps[name].(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			slog.Warn("failed to close tool", "tool", name, "error", err)
			lastErr = err
		}
	}
	return lastErr
}
