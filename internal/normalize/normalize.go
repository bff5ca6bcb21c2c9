// Package normalize maps untrusted inbound stream frames onto the canonical
// alert model. Frames arrive in two supported schemas plus handshake/control
// messages; everything else is rejected, never raised.
package normalize

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"alert-stream/internal/models"
)

// Rejection reasons. A rejected frame is dropped by the caller; none of
// these is a fault.
var (
	ErrParse          = errors.New("unparseable frame")
	ErrControl        = errors.New("control frame")
	ErrUnclassifiable = errors.New("unclassifiable frame")
)

// controlType marks the handshake frame the server sends once per session.
const controlType = "connection_established"

const (
	placeholderMessage = "Alert received"
	defaultSensorID    = "unknown"
	defaultSource      = "stream"
)

// typeLevels is the allow-list for the `type` schema, compared upper-cased.
var typeLevels = map[string]models.Level{
	"CRITICAL":  models.LevelCritical,
	"WARNING":   models.LevelWarning,
	"NOTICE":    models.LevelInfo,
	"RESOLVED":  models.LevelInfo,
	"RUL_ALERT": models.LevelWarning,
}

// levelAliases is the allow-list for the `level` schema, compared lower-cased.
var levelAliases = map[string]models.Level{
	"info":     models.LevelInfo,
	"warning":  models.LevelWarning,
	"critical": models.LevelCritical,
	"notice":   models.LevelInfo,
	"resolved": models.LevelInfo,
}

// sensorIDKeys are the candidate sensor id fields, in priority order.
var sensorIDKeys = []string{"sensor_id", "sensorId", "device_id", "deviceId"}

// timestampKeys are the candidate event timestamp fields, in priority order.
var timestampKeys = []string{"timestamp", "ts"}

// Normalizer converts raw frames into canonical Alerts. It is a pure
// mapping: the clock and id generator are its only inputs beyond the frame,
// both injectable for tests.
type Normalizer struct {
	now   func() time.Time
	newID func() string
}

// New returns a Normalizer backed by the real clock and uuid generation.
func New() *Normalizer {
	return &Normalizer{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Normalize maps a raw frame to a canonical Alert. It never panics; frames
// that cannot produce an alert return ErrParse, ErrControl or
// ErrUnclassifiable.
func (n *Normalizer) Normalize(raw []byte) (models.Alert, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return models.Alert{}, ErrParse
	}

	typ := stringField(fields, "type")
	if typ == controlType {
		return models.Alert{}, ErrControl
	}

	level, ok := classify(fields, typ)
	if !ok {
		return models.Alert{}, ErrUnclassifiable
	}

	consumed := map[string]bool{"type": true, "level": true, "message": true, "id": true, "source": true}

	alert := models.Alert{
		ID:      stringField(fields, "id"),
		Level:   level,
		Message: stringField(fields, "message"),
		Source:  stringField(fields, "source"),
	}
	if alert.ID == "" {
		alert.ID = n.newID()
	}
	if alert.Message == "" {
		alert.Message = placeholderMessage
	}
	if alert.Source == "" {
		alert.Source = defaultSource
	}

	alert.SensorID = defaultSensorID
	for _, key := range sensorIDKeys {
		if v := stringField(fields, key); v != "" {
			alert.SensorID = v
			consumed[key] = true
			break
		}
	}

	alert.Timestamp = n.now()
	for _, key := range timestampKeys {
		v := stringField(fields, key)
		if v == "" {
			continue
		}
		consumed[key] = true
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			alert.Timestamp = ts
		}
		break
	}

	details := make(map[string]interface{})
	for k, v := range fields {
		if !consumed[k] {
			details[k] = v
		}
	}
	if len(details) > 0 {
		alert.Details = details
	}

	return alert, nil
}

// classify resolves the alert level: the `type` allow-list first, then the
// `level` aliases, then the permissive default for frames that at least
// carry a message.
func classify(fields map[string]interface{}, typ string) (models.Level, bool) {
	if typ != "" {
		if lvl, ok := typeLevels[strings.ToUpper(typ)]; ok {
			return lvl, true
		}
	}
	if raw := stringField(fields, "level"); raw != "" {
		if lvl, ok := levelAliases[strings.ToLower(raw)]; ok {
			return lvl, true
		}
	}
	if stringField(fields, "message") != "" {
		return models.LevelInfo, true
	}
	return "", false
}

// stringField returns fields[key] when it holds a string, else "".
func stringField(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}
