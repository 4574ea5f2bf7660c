package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"pupil-tracker/internal/logger"
)

// Manager turns the first interrupt into context cancellation. The tracker
// observes the context at frame boundaries, so the records already produced
// are kept and flushed by the caller.
type Manager struct {
	logger      logger.Logger
	mu          sync.Mutex
	done        chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	interrupted bool
}

func NewManager(parent context.Context, log logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(parent)

	return &Manager{
		logger: log,
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Listen starts watching SIGINT and SIGTERM until Shutdown is called.
func (m *Manager) Listen() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			m.logger.Info("ShutdownManager", "shutdown signal received", map[string]interface{}{
				"signal": sig.String(),
			})
			m.shutdown(sig.String(), true)
		case <-m.done:
		}
	}()
}

// Shutdown cancels the context. Repeated calls are no-ops.
func (m *Manager) Shutdown() {
	m.shutdown("requested", false)
}

func (m *Manager) shutdown(reason string, bySignal bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.done:
		return
	default:
		close(m.done)
	}

	m.interrupted = bySignal
	m.cancel()
	m.logger.Debug("ShutdownManager", "context cancelled", map[string]interface{}{
		"reason": reason,
	})
}

// Interrupted reports whether the run was stopped by a signal.
func (m *Manager) Interrupted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interrupted
}

func (m *Manager) Context() context.Context {
	return m.ctx
}

func (m *Manager) Done() <-chan struct{} {
	return m.done
}
