package display

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alert-stream/internal/models"
)

type recordedToast struct {
	message string
	level   models.Level
}

type recordingSink struct {
	mu     sync.Mutex
	toasts []recordedToast
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) ShowToast(_ context.Context, message string, level models.Level, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, recordedToast{message: message, level: level})
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.toasts)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestDispatcherDeliversToAllSinks(t *testing.T) {
	first := &recordingSink{}
	second := &recordingSink{}
	d := NewDispatcher([]Sink{first, second}, 16, 2, testLogger())

	var wg sync.WaitGroup
	d.Start(&wg)
	defer func() {
		d.Stop()
		wg.Wait()
	}()

	d.ShowToast("Engine Overheat", models.LevelCritical, time.Minute)
	d.ShowToast("Pressure normal", models.LevelInfo, time.Minute)

	require.Eventually(t, func() bool {
		return first.count() == 2 && second.count() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	sink := &recordingSink{}
	// No workers started, so the queue cannot drain.
	d := NewDispatcher([]Sink{sink}, 1, 0, testLogger())

	d.ShowToast("kept", models.LevelInfo, 0)
	d.ShowToast("dropped", models.LevelInfo, 0)

	assert.Equal(t, 1, len(d.tasks))
}

func TestDispatcherStopEndsWorkers(t *testing.T) {
	d := NewDispatcher(nil, 4, 3, testLogger())

	var wg sync.WaitGroup
	d.Start(&wg)
	d.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("workers did not stop")
	}
}

func TestTelegramFiltersBelowMinLevel(t *testing.T) {
	tg := NewTelegram("token", 42, 1, models.LevelCritical, testLogger())

	// Filtered toasts return nil without touching the network.
	assert.NoError(t, tg.ShowToast(context.Background(), "m", models.LevelInfo, 0))
	assert.NoError(t, tg.ShowToast(context.Background(), "m", models.LevelWarning, 0))
}

func TestConsoleNeverFails(t *testing.T) {
	c := NewConsole(testLogger())

	for _, level := range []models.Level{models.LevelInfo, models.LevelWarning, models.LevelCritical} {
		assert.NoError(t, c.ShowToast(context.Background(), "m", level, time.Minute))
	}
}
