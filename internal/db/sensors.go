package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"alert-stream/internal/models"
)

// ListSensors returns every sensor metadata row.
func (d *DB) ListSensors(ctx context.Context) ([]models.Sensor, error) {
	rows, err := d.Pool.Query(ctx, `SELECT id, name, location, unit FROM sensors`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensors: %w", err)
	}
	defer rows.Close()

	var sensors []models.Sensor
	for rows.Next() {
		var s models.Sensor
		if err := rows.Scan(&s.ID, &s.Name, &s.Location, &s.Unit); err != nil {
			return nil, fmt.Errorf("failed to scan sensor: %w", err)
		}
		sensors = append(sensors, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sensors: %w", err)
	}
	return sensors, nil
}

// GetSensor returns the sensor row for id.
func (d *DB) GetSensor(ctx context.Context, id string) (models.Sensor, error) {
	var s models.Sensor
	err := d.Pool.QueryRow(ctx, `SELECT id, name, location, unit FROM sensors WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Location, &s.Unit)
	if err != nil {
		return models.Sensor{}, fmt.Errorf("failed to get sensor %s: %w", id, err)
	}
	return s, nil
}

// Catalog caches sensor metadata so lookups on the display path never
// block on the database.
type Catalog struct {
	db     *DB
	logger *logrus.Logger

	mu      sync.RWMutex
	sensors map[string]models.Sensor
}

func NewCatalog(database *DB, logger *logrus.Logger) *Catalog {
	return &Catalog{
		db:      database,
		logger:  logger,
		sensors: make(map[string]models.Sensor),
	}
}

// Refresh reloads the cache from the database.
func (c *Catalog) Refresh(ctx context.Context) error {
	sensors, err := c.db.ListSensors(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh sensor catalog: %w", err)
	}

	next := make(map[string]models.Sensor, len(sensors))
	for _, s := range sensors {
		next[s.ID] = s
	}

	c.mu.Lock()
	c.sensors = next
	c.mu.Unlock()

	c.logger.Infof("Sensor catalog refreshed: %d sensors", len(next))
	return nil
}

// Sensor returns the cached metadata for id.
func (c *Catalog) Sensor(id string) (models.Sensor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sensors[id]
	return s, ok
}
