package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Manager handles graceful shutdown. On the first SIGINT/SIGTERM it cancels
// the context handed out by Context(); registered shutdown functions run
// when Shutdown is called. A second signal exits immediately.
type Manager struct {
	shutdownFuncs []func(context.Context) error
	mu            sync.Mutex
	timeout       time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
	once          sync.Once
}

// New creates a new shutdown manager
func New(timeout time.Duration) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		shutdownFuncs: make([]func(context.Context) error, 0),
		timeout:       timeout,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Context returns the run context. It is cancelled when a shutdown signal
// arrives; consumers stop picking up new work but let in-flight work finish.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Register adds a shutdown function
// Functions are called in reverse order (LIFO)
func (m *Manager) Register(fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownFuncs = append(m.shutdownFuncs, fn)
}

// Listen installs the signal handler. First signal cancels the run context;
// second signal force-exits.
func (m *Manager) Listen(onSignal func(sig os.Signal)) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigChan
		if onSignal != nil {
			onSignal(sig)
		}
		m.once.Do(m.cancel)

		<-sigChan
		os.Exit(1)
	}()
}

// Cancel triggers the same cooperative stop as a signal would.
func (m *Manager) Cancel() {
	m.once.Do(m.cancel)
}

// Shutdown executes all registered shutdown functions in reverse order
// (LIFO), each bounded by the manager timeout.
func (m *Manager) Shutdown() []error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var errs []error
	for i := len(m.shutdownFuncs) - 1; i >= 0; i-- {
		if err := m.shutdownFuncs[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
