package display

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"alert-stream/internal/models"
)

// Console renders toasts as log lines, the daemon's stand-in for the
// dashboard toast surface.
type Console struct {
	logger *logrus.Logger
}

// NewConsole returns a console sink writing through logger.
func NewConsole(logger *logrus.Logger) *Console {
	return &Console{logger: logger}
}

func (c *Console) Name() string { return "console" }

// ShowToast writes the toast at the log level matching the alert level.
func (c *Console) ShowToast(_ context.Context, message string, level models.Level, _ time.Duration) error {
	switch level {
	case models.LevelCritical:
		c.logger.Errorf("TOAST [%s] %s", level, message)
	case models.LevelWarning:
		c.logger.Warnf("TOAST [%s] %s", level, message)
	default:
		c.logger.Infof("TOAST [%s] %s", level, message)
	}
	return nil
}
