package notification

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alert-stream/internal/models"
	"alert-stream/internal/mute"
)

type toastCall struct {
	message string
	level   models.Level
	ttl     time.Duration
}

type fakeToaster struct {
	mu    sync.Mutex
	calls []toastCall
}

func (f *fakeToaster) ShowToast(message string, level models.Level, ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, toastCall{message: message, level: level, ttl: ttl})
}

func (f *fakeToaster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeToaster) last() toastCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeCatalog struct {
	sensors map[string]models.Sensor
}

func (f *fakeCatalog) Sensor(id string) (models.Sensor, bool) {
	s, ok := f.sensors[id]
	return s, ok
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testAlert(id, sensor, message string, level models.Level) models.Alert {
	return models.Alert{
		ID:        id,
		Level:     level,
		Message:   message,
		SensorID:  sensor,
		Source:    "stream",
		Timestamp: time.Now(),
	}
}

func newTestStore(defaultTTL, criticalTTL time.Duration) (*Store, *mute.Registry, *fakeToaster) {
	mutes := mute.NewRegistry()
	toasts := &fakeToaster{}
	store := NewStore(mutes, toasts, testLogger(), defaultTTL, criticalTTL)
	return store, mutes, toasts
}

func TestEnqueueMakesEntryVisible(t *testing.T) {
	store, _, toasts := newTestStore(time.Minute, 0)

	ok := store.Enqueue(testAlert("a1", "temp-01", "Engine Overheat", models.LevelWarning))

	require.True(t, ok)
	active := store.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "a1", active[0].Alert.ID)
	assert.True(t, active[0].Visible)
	assert.False(t, active[0].ExpiresAt.IsZero())

	require.Equal(t, 1, toasts.count())
	assert.Equal(t, "Engine Overheat", toasts.last().message)
	assert.Equal(t, models.LevelWarning, toasts.last().level)
	assert.Equal(t, time.Minute, toasts.last().ttl)
}

func TestEnqueueRespectsMute(t *testing.T) {
	store, mutes, toasts := newTestStore(time.Minute, 0)
	mutes.Mute("temp-01", time.Minute)

	ok := store.Enqueue(testAlert("a1", "temp-01", "Engine Overheat", models.LevelCritical))

	assert.False(t, ok)
	assert.Empty(t, store.Active())
	assert.Equal(t, 0, toasts.count())
	assert.Equal(t, uint64(1), store.Stats().Muted)
}

func TestMuteExpiryReadmitsAlerts(t *testing.T) {
	store, mutes, _ := newTestStore(time.Minute, 0)
	mutes.Mute("temp-01", 30*time.Millisecond)

	assert.False(t, store.Enqueue(testAlert("a1", "temp-01", "Engine Overheat", models.LevelWarning)))

	time.Sleep(60 * time.Millisecond)

	assert.True(t, store.Enqueue(testAlert("a2", "temp-01", "Engine Overheat", models.LevelWarning)))
	assert.Len(t, store.Active(), 1)
}

func TestEnqueueDeduplicatesContent(t *testing.T) {
	store, _, toasts := newTestStore(time.Minute, 0)

	require.True(t, store.Enqueue(testAlert("a1", "temp-01", "Engine Overheat", models.LevelWarning)))
	assert.False(t, store.Enqueue(testAlert("a2", "temp-01", "Engine Overheat", models.LevelWarning)))
	assert.True(t, store.Enqueue(testAlert("a3", "temp-01", "Pressure normal", models.LevelInfo)))

	assert.Len(t, store.Active(), 2)
	assert.Equal(t, 2, toasts.count())
	assert.Equal(t, uint64(1), store.Stats().Duplicates)
}

func TestDedupReadmitsAfterDismiss(t *testing.T) {
	store, _, _ := newTestStore(time.Minute, 0)

	require.True(t, store.Enqueue(testAlert("a1", "temp-01", "Engine Overheat", models.LevelWarning)))
	require.True(t, store.Dismiss("a1"))

	assert.True(t, store.Enqueue(testAlert("a2", "temp-01", "Engine Overheat", models.LevelWarning)))
}

func TestEntriesExpire(t *testing.T) {
	store, _, _ := newTestStore(30*time.Millisecond, 0)

	require.True(t, store.Enqueue(testAlert("a1", "temp-01", "Engine Overheat", models.LevelInfo)))

	require.Eventually(t, func() bool {
		return len(store.Active()) == 0
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(1), store.Stats().Expired)
}

func TestExpiryReopensDedupKey(t *testing.T) {
	store, _, _ := newTestStore(30*time.Millisecond, 0)

	require.True(t, store.Enqueue(testAlert("a1", "temp-01", "Engine Overheat", models.LevelInfo)))
	require.Eventually(t, func() bool {
		return len(store.Active()) == 0
	}, time.Second, 10*time.Millisecond)

	assert.True(t, store.Enqueue(testAlert("a2", "temp-01", "Engine Overheat", models.LevelInfo)))
}

func TestCriticalEntriesAreSticky(t *testing.T) {
	store, _, toasts := newTestStore(30*time.Millisecond, 0)

	require.True(t, store.Enqueue(testAlert("a1", "temp-01", "Engine Overheat", models.LevelCritical)))

	time.Sleep(80 * time.Millisecond)

	active := store.Active()
	require.Len(t, active, 1)
	assert.True(t, active[0].ExpiresAt.IsZero())
	assert.Equal(t, time.Duration(0), toasts.last().ttl)
}

func TestDismissIsIdempotent(t *testing.T) {
	store, _, _ := newTestStore(time.Minute, 0)

	require.True(t, store.Enqueue(testAlert("a1", "temp-01", "Engine Overheat", models.LevelWarning)))

	assert.True(t, store.Dismiss("a1"))
	assert.False(t, store.Dismiss("a1"))
	assert.Empty(t, store.Active())
}

func TestDismissCancelsExpiryTimer(t *testing.T) {
	store, _, _ := newTestStore(40*time.Millisecond, 0)

	require.True(t, store.Enqueue(testAlert("a1", "temp-01", "Engine Overheat", models.LevelInfo)))
	require.True(t, store.Dismiss("a1"))

	time.Sleep(100 * time.Millisecond)

	stats := store.Stats()
	assert.Equal(t, uint64(0), stats.Expired)
	assert.Equal(t, uint64(1), stats.Dismissed)
}

func TestActiveOrdersMostRecentFirst(t *testing.T) {
	store, _, _ := newTestStore(time.Minute, 0)

	require.True(t, store.Enqueue(testAlert("a1", "temp-01", "first", models.LevelInfo)))
	require.True(t, store.Enqueue(testAlert("a2", "temp-02", "second", models.LevelInfo)))
	require.True(t, store.Enqueue(testAlert("a3", "temp-03", "third", models.LevelInfo)))

	active := store.Active()
	require.Len(t, active, 3)
	assert.Equal(t, "a3", active[0].Alert.ID)
	assert.Equal(t, "a2", active[1].Alert.ID)
	assert.Equal(t, "a1", active[2].Alert.ID)
}

func TestToastUsesSensorCatalogName(t *testing.T) {
	store, _, toasts := newTestStore(time.Minute, 0)
	store.SetSensorLookup(&fakeCatalog{sensors: map[string]models.Sensor{
		"temp-01": {ID: "temp-01", Name: "Boiler Temperature"},
	}})

	require.True(t, store.Enqueue(testAlert("a1", "temp-01", "Engine Overheat", models.LevelCritical)))

	assert.Equal(t, "[Boiler Temperature] Engine Overheat", toasts.last().message)
}

func TestStopCancelsAllTimers(t *testing.T) {
	store, _, _ := newTestStore(40*time.Millisecond, 0)

	require.True(t, store.Enqueue(testAlert("a1", "temp-01", "one", models.LevelInfo)))
	require.True(t, store.Enqueue(testAlert("a2", "temp-02", "two", models.LevelInfo)))

	store.Stop()
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, uint64(0), store.Stats().Expired)
}
