// Package observability provides hooks for metrics, tracing, and logging.
//
// Consumers register hooks at startup to receive events about placement,
// routing and cache operations without the core packages depending on a
// specific observability backend.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetPipelineHooks(&myPipelineHooks{})
//	    observability.SetRoutingHooks(&myRoutingHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Routing().OnNetStart(ctx, net, edges)
//	// ... route the net ...
//	observability.Routing().OnNetComplete(ctx, net, status, routed, edges, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives stage events from a pipeline run.
type PipelineHooks interface {
	// Placement events
	OnPlaceStart(ctx context.Context, design, strategy string, components int)
	OnPlaceComplete(ctx context.Context, design, strategy string, duration time.Duration, err error)

	// Routing events
	OnRouteStart(ctx context.Context, design string, nets int)
	OnRouteComplete(ctx context.Context, design string, completionRate float64, duration time.Duration, err error)
}

// =============================================================================
// Routing Hooks
// =============================================================================

// RoutingHooks receives per-net events from the routing orchestrator.
type RoutingHooks interface {
	// OnNetStart records the start of one net.
	OnNetStart(ctx context.Context, net string, edges int)

	// OnNetComplete records the outcome of one net. status is "routed",
	// "partial" or "unrouted"; err is the last edge failure, if any.
	OnNetComplete(ctx context.Context, net, status string, routedEdges, edges int, duration time.Duration, err error)

	// OnRetry records another attempt at one connection of a net after
	// cause. attempt counts from 1.
	OnRetry(ctx context.Context, net string, attempt int, cause error)

	// OnRipUp records a net being torn up to make room for another.
	OnRipUp(ctx context.Context, victim, beneficiary string, accepted bool)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnPlaceStart(context.Context, string, string, int) {}
func (NoopPipelineHooks) OnPlaceComplete(context.Context, string, string, time.Duration, error) {
}
func (NoopPipelineHooks) OnRouteStart(context.Context, string, int) {}
func (NoopPipelineHooks) OnRouteComplete(context.Context, string, float64, time.Duration, error) {
}

// NoopRoutingHooks is a no-op implementation of RoutingHooks.
type NoopRoutingHooks struct{}

func (NoopRoutingHooks) OnNetStart(context.Context, string, int) {}
func (NoopRoutingHooks) OnNetComplete(context.Context, string, string, int, int, time.Duration, error) {
}
func (NoopRoutingHooks) OnRetry(context.Context, string, int, error) {}
func (NoopRoutingHooks) OnRipUp(context.Context, string, string, bool) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	routingHooks  RoutingHooks  = NoopRoutingHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers custom pipeline hooks.
// This should be called once at application startup before any pipeline operations.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetRoutingHooks registers custom routing hooks.
func SetRoutingHooks(h RoutingHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		routingHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Routing returns the registered routing hooks.
func Routing() RoutingHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return routingHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	routingHooks = NoopRoutingHooks{}
	cacheHooks = NoopCacheHooks{}
}
