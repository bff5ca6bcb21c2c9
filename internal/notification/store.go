// Package notification owns the queue of active alert notifications: mute
// checks, content-level deduplication, per-entry expiry timers and manual
// dismissal.
package notification

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"alert-stream/internal/models"
	"alert-stream/internal/mute"
)

// Toaster is the display surface accepted notifications are pushed to.
type Toaster interface {
	ShowToast(message string, level models.Level, ttl time.Duration)
}

// SensorLookup resolves sensor metadata for display enrichment. Calls must
// not block; the store invokes it inline while enqueuing.
type SensorLookup interface {
	Sensor(id string) (models.Sensor, bool)
}

// Entry is one active notification. A zero ExpiresAt means the entry is
// sticky and is removed only by Dismiss.
type Entry struct {
	Alert     models.Alert `json:"alert"`
	ExpiresAt time.Time    `json:"expires_at,omitempty"`
	Visible   bool         `json:"visible"`
}

// Stats are the store's counters, exposed by the admin API.
type Stats struct {
	Visible    int    `json:"visible"`
	Muted      uint64 `json:"suppressed_muted"`
	Duplicates uint64 `json:"suppressed_duplicate"`
	Expired    uint64 `json:"expired"`
	Dismissed  uint64 `json:"dismissed"`
}

// Store holds the visible notifications. All mutation goes through Enqueue,
// Dismiss and the expiry timers; readers get copies.
type Store struct {
	mu      sync.Mutex
	entries map[string]*Entry
	order   []string
	timers  map[string]*time.Timer

	mutes   *mute.Registry
	display Toaster
	sensors SensorLookup
	logger  *logrus.Logger

	defaultTTL  time.Duration
	criticalTTL time.Duration
	now         func() time.Time

	muted      uint64
	duplicates uint64
	expired    uint64
	dismissed  uint64
}

// NewStore builds a Store. display may be nil (no toasts); criticalTTL zero
// makes critical notifications sticky.
func NewStore(mutes *mute.Registry, display Toaster, logger *logrus.Logger, defaultTTL, criticalTTL time.Duration) *Store {
	return &Store{
		entries:     make(map[string]*Entry),
		timers:      make(map[string]*time.Timer),
		mutes:       mutes,
		display:     display,
		logger:      logger,
		defaultTTL:  defaultTTL,
		criticalTTL: criticalTTL,
		now:         time.Now,
	}
}

// SetSensorLookup installs the metadata catalog. Call before the first
// Enqueue; the store works without one.
func (s *Store) SetSensorLookup(lookup SensorLookup) {
	s.sensors = lookup
}

// Enqueue applies the mute and dedup policy to alert and, when accepted,
// inserts a visible entry with a level-based TTL and pushes a toast. It
// reports whether the alert became visible.
func (s *Store) Enqueue(alert models.Alert) bool {
	if s.mutes.IsMuted(alert.SensorID) {
		s.mu.Lock()
		s.muted++
		s.mu.Unlock()
		s.logger.Debugf("Suppressed muted alert: sensor=%s", alert.SensorID)
		return false
	}

	s.mu.Lock()
	if s.isDuplicateLocked(alert) {
		s.duplicates++
		s.mu.Unlock()
		s.logger.Debugf("Suppressed duplicate alert: sensor=%s message=%q", alert.SensorID, alert.Message)
		return false
	}

	ttl := s.ttlFor(alert.Level)
	entry := &Entry{Alert: alert, Visible: true}
	if ttl > 0 {
		entry.ExpiresAt = s.now().Add(ttl)
		id := alert.ID
		s.timers[id] = time.AfterFunc(ttl, func() { s.expire(id) })
	}
	s.entries[alert.ID] = entry
	s.order = append(s.order, alert.ID)
	s.mu.Unlock()

	s.logger.Infof("Notification enqueued: id=%s level=%s sensor=%s", alert.ID, alert.Level, alert.SensorID)
	if s.display != nil {
		s.display.ShowToast(s.displayMessage(alert), alert.Level, ttl)
	}
	return true
}

// Dismiss removes an entry regardless of timer state and cancels its expiry
// timer. Dismissing an id that is already gone is a no-op returning false.
func (s *Store) Dismiss(id string) bool {
	s.mu.Lock()
	if _, ok := s.entries[id]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.entries, id)
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.removeFromOrderLocked(id)
	s.dismissed++
	s.mu.Unlock()

	s.logger.Infof("Notification dismissed: id=%s", id)
	return true
}

// Active returns the visible entries, most recently enqueued first.
func (s *Store) Active() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if e, ok := s.entries[s.order[i]]; ok {
			out = append(out, *e)
		}
	}
	return out
}

// Stats returns a counter snapshot.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Visible:    len(s.entries),
		Muted:      s.muted,
		Duplicates: s.duplicates,
		Expired:    s.expired,
		Dismissed:  s.dismissed,
	}
}

// Stop cancels every pending expiry timer. Used at shutdown.
func (s *Store) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// expire removes id when its timer fires. The entry may already be gone
// (dismissed, or a duplicate firing); that is a no-op.
func (s *Store) expire(id string) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.entries, id)
	delete(s.timers, id)
	s.removeFromOrderLocked(id)
	s.expired++
	s.mu.Unlock()

	s.logger.Debugf("Notification expired: id=%s sensor=%s", id, entry.Alert.SensorID)
}

// isDuplicateLocked reports whether an unexpired visible entry already
// carries the same (sensor, message) content, or the same id.
func (s *Store) isDuplicateLocked(alert models.Alert) bool {
	if _, ok := s.entries[alert.ID]; ok {
		return true
	}
	now := s.now()
	for _, e := range s.entries {
		if e.Alert.SensorID != alert.SensorID || e.Alert.Message != alert.Message {
			continue
		}
		if e.ExpiresAt.IsZero() || e.ExpiresAt.After(now) {
			return true
		}
	}
	return false
}

// ttlFor maps a level to its display lifetime. Zero means sticky.
func (s *Store) ttlFor(level models.Level) time.Duration {
	if level == models.LevelCritical {
		return s.criticalTTL
	}
	return s.defaultTTL
}

// displayMessage prefixes the alert text with the sensor's catalog name
// when it is known.
func (s *Store) displayMessage(alert models.Alert) string {
	if s.sensors != nil {
		if meta, ok := s.sensors.Sensor(alert.SensorID); ok && meta.Name != "" {
			return fmt.Sprintf("[%s] %s", meta.Name, alert.Message)
		}
	}
	return alert.Message
}

func (s *Store) removeFromOrderLocked(id string) {
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
