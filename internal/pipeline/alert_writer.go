package pipeline

import (
	"context"

	"sessionwatch/pkg/models"
)

// AlertWriter persists alerts.
type AlertWriter interface {
	WriteAlert(ctx context.Context, alert *models.Alert) error
	Close() error
}
