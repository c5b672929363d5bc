// Package browser owns the single shared headless Chrome process and hands
// out per-caller leases backed by isolated browsing contexts. The process is
// launched lazily on the first Acquire and is never closed while a lease is
// outstanding: RequestShutdown defers until the active-lease count reaches
// zero, so callers may request shutdown unconditionally after every
// top-level operation even while sibling fetches are in flight.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Wait strategies for fallback navigation.
const (
	WaitLoad             = "load"
	WaitDOMContentLoaded = "domcontentloaded"
	WaitNetworkIdle      = "networkidle"
)

// ErrEngineUnavailable indicates the browser engine could not be started,
// e.g. Chrome is not installed. Distinct from per-navigation failures.
var ErrEngineUnavailable = errors.New("browser engine unavailable")

// Config holds browser engine configuration.
type Config struct {
	Headless          bool
	Bin               string // optional explicit Chrome binary
	WaitStrategy      string
	NavigationTimeout time.Duration
}

// engine is the underlying browser process handle.
type engine interface {
	NewContext() (renderContext, error)
	Close() error
}

// renderContext is one isolated browsing context with fresh cookies/storage.
type renderContext interface {
	Render(ctx context.Context, url string, cfg Config) (string, error)
	Close() error
}

// Manager grants leases on the shared engine. Safe for concurrent use.
type Manager struct {
	cfg Config

	mu             sync.Mutex
	engine         engine
	active         int
	shutdownWanted bool

	// start is swapped out in tests to avoid launching a real Chrome.
	start func(cfg Config) (engine, error)
}

// NewManager creates a Manager. No process is launched until first Acquire.
func NewManager(cfg Config) *Manager {
	if cfg.NavigationTimeout == 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.WaitStrategy == "" {
		cfg.WaitStrategy = WaitNetworkIdle
	}
	return &Manager{cfg: cfg, start: startChrome}
}

// Lease is a caller's temporary right to render pages via the shared engine.
// Release must be called when done; it is idempotent.
type Lease struct {
	mgr      *Manager
	ctx      renderContext
	released bool // guarded by mgr.mu
}

// Acquire returns a lease backed by a fresh isolated browsing context,
// starting the shared engine if needed. Launch failures wrap
// ErrEngineUnavailable.
func (m *Manager) Acquire(ctx context.Context) (*Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if m.engine == nil {
		slog.Debug("starting browser engine", "headless", m.cfg.Headless)
		eng, err := m.start(m.cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}
		m.engine = eng
		m.shutdownWanted = false
	}

	rc, err := m.engine.NewContext()
	if err != nil {
		return nil, fmt.Errorf("new browsing context: %w", err)
	}

	m.active++
	slog.Debug("browser lease acquired", "active", m.active)
	return &Lease{mgr: m, ctx: rc}, nil
}

// Render navigates the lease's context to url, waits per the configured
// strategy and timeout, and returns the rendered HTML.
func (l *Lease) Render(ctx context.Context, url string) (string, error) {
	return l.ctx.Render(ctx, url, l.mgr.cfg)
}

// Release closes the lease's browsing context, never the shared engine.
// If a shutdown was requested while this lease was live and it is the last
// one out, the engine is closed now.
func (l *Lease) Release() {
	m := l.mgr

	m.mu.Lock()
	if l.released {
		m.mu.Unlock()
		return
	}
	l.released = true
	_ = l.ctx.Close()
	m.active--

	var closing engine
	if m.shutdownWanted && m.active == 0 && m.engine != nil {
		closing = m.engine
		m.engine = nil
		m.shutdownWanted = false
	}
	active := m.active
	m.mu.Unlock()

	slog.Debug("browser lease released", "active", active)
	if closing != nil {
		slog.Debug("closing browser engine after deferred shutdown")
		if err := closing.Close(); err != nil {
			slog.Warn("browser engine close failed", "error", err)
		}
	}
}

// RequestShutdown closes the shared engine, or defers the close until every
// outstanding lease has been released. The next Acquire after a real close
// transparently restarts the engine.
func (m *Manager) RequestShutdown() {
	m.mu.Lock()
	if m.engine == nil {
		m.mu.Unlock()
		return
	}
	if m.active > 0 {
		m.shutdownWanted = true
		active := m.active
		m.mu.Unlock()
		slog.Debug("browser shutdown deferred", "active", active)
		return
	}
	closing := m.engine
	m.engine = nil
	m.mu.Unlock()

	slog.Debug("closing browser engine")
	if err := closing.Close(); err != nil {
		slog.Warn("browser engine close failed", "error", err)
	}
}

// Running reports whether the shared engine process is currently up.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine != nil
}
