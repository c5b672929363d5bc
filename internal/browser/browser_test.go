package browser

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakeEngine counts contexts and records whether Close was called.
type fakeEngine struct {
	mu       sync.Mutex
	contexts int
	closed   bool
}

func (e *fakeEngine) NewContext() (renderContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errors.New("engine closed")
	}
	e.contexts++
	return &fakeContext{}, nil
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *fakeEngine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

type fakeContext struct {
	closed bool
}

func (c *fakeContext) Render(ctx context.Context, url string, cfg Config) (string, error) {
	return "<html><body>rendered</body></html>", nil
}

func (c *fakeContext) Close() error {
	c.closed = true
	return nil
}

// newTestManager returns a Manager whose engine launches are recorded.
func newTestManager(t *testing.T) (*Manager, *[]*fakeEngine) {
	t.Helper()
	var engines []*fakeEngine
	m := NewManager(Config{})
	m.start = func(cfg Config) (engine, error) {
		e := &fakeEngine{}
		engines = append(engines, e)
		return e, nil
	}
	return m, &engines
}

func TestManager_LazyStart(t *testing.T) {
	m, engines := newTestManager(t)

	if m.Running() {
		t.Fatal("engine should not start before first Acquire")
	}

	lease, err := m.Acquire(t.Context())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer lease.Release()

	if !m.Running() {
		t.Error("engine should be running after Acquire")
	}
	if len(*engines) != 1 {
		t.Errorf("launched %d engines, want 1", len(*engines))
	}
}

func TestManager_ShutdownDeferredUntilLeasesReleased(t *testing.T) {
	m, engines := newTestManager(t)
	ctx := t.Context()

	l1, err := m.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	l2, err := m.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	m.RequestShutdown()
	if (*engines)[0].isClosed() {
		t.Fatal("engine closed while two leases were outstanding")
	}

	l1.Release()
	if (*engines)[0].isClosed() {
		t.Fatal("engine closed while one lease was outstanding")
	}

	l2.Release()
	if !(*engines)[0].isClosed() {
		t.Fatal("engine not closed after last lease released")
	}
	if m.Running() {
		t.Error("manager still reports running after deferred shutdown")
	}
}

func TestManager_AcquireRestartsAfterShutdown(t *testing.T) {
	m, engines := newTestManager(t)
	ctx := t.Context()

	lease, err := m.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	lease.Release()
	m.RequestShutdown()

	if !(*engines)[0].isClosed() {
		t.Fatal("engine should close with no leases outstanding")
	}

	// A new acquire must transparently relaunch rather than error.
	lease, err = m.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() after shutdown error = %v", err)
	}
	defer lease.Release()

	if len(*engines) != 2 {
		t.Errorf("launched %d engines, want 2", len(*engines))
	}
}

func TestManager_ReleaseIsIdempotent(t *testing.T) {
	m, engines := newTestManager(t)
	ctx := t.Context()

	l1, err := m.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	l2, err := m.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// Double release of l1 must not free l2's lease.
	l1.Release()
	l1.Release()

	m.RequestShutdown()
	if (*engines)[0].isClosed() {
		t.Fatal("double release freed another caller's lease")
	}

	l2.Release()
	if !(*engines)[0].isClosed() {
		t.Fatal("engine not closed after the real last release")
	}
}

func TestManager_ConcurrentAcquireRelease(t *testing.T) {
	m, engines := newTestManager(t)
	ctx := t.Context()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := m.Acquire(ctx)
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			if _, err := lease.Render(ctx, "https://example.com"); err != nil {
				t.Errorf("Render() error = %v", err)
			}
			lease.Release()
		}()
	}
	wg.Wait()

	m.RequestShutdown()
	if len(*engines) != 1 {
		t.Errorf("launched %d engines, want 1", len(*engines))
	}
	if !(*engines)[0].isClosed() {
		t.Error("engine not closed after all concurrent leases released")
	}
}

func TestManager_StartFailureIsEngineUnavailable(t *testing.T) {
	m := NewManager(Config{})
	m.start = func(cfg Config) (engine, error) {
		return nil, errors.New("chrome not found")
	}

	_, err := m.Acquire(t.Context())
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("Acquire() error = %v, want ErrEngineUnavailable", err)
	}
}

func TestManager_ShutdownWithoutStartIsNoop(t *testing.T) {
	m, engines := newTestManager(t)
	m.RequestShutdown()
	if len(*engines) != 0 {
		t.Errorf("shutdown launched %d engines, want 0", len(*engines))
	}
}
