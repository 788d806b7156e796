package tracker

import (
	"context"
	"os"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"hyperwatch/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Only one test may deliver a signal: a second one would hit the forced exit.
func TestSetupSignalHandler(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Signal tests not supported on Windows")
	}

	var shutdownCalled atomic.Bool
	ctx := SetupSignalHandler(observability.Discard(), func(ctx context.Context) {
		shutdownCalled.Store(true)
	})

	select {
	case <-ctx.Done():
		t.Fatal("context cancelled before any signal")
	default:
	}

	p, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, p.Signal(os.Interrupt))

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled after signal")
	}
	assert.True(t, shutdownCalled.Load())
}
