package pipeline

import (
	"context"

	"sessionwatch/pkg/models"
)

// EventWriter persists accepted events.
type EventWriter interface {
	WriteEvent(ctx context.Context, event *models.Event) error
	Close() error
}
