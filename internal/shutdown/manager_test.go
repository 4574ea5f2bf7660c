package shutdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"pupil-tracker/internal/logger"
)

func TestShutdownCancelsContextOnce(t *testing.T) {
	m := NewManager(context.Background(), logger.Nop())
	m.Listen()

	assert.NoError(t, m.Context().Err())

	m.Shutdown()
	m.Shutdown()

	<-m.Done()
	assert.ErrorIs(t, m.Context().Err(), context.Canceled)
	assert.False(t, m.Interrupted())
}

func TestParentCancellationPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	m := NewManager(parent, logger.Nop())

	cancel()
	assert.ErrorIs(t, m.Context().Err(), context.Canceled)
}
