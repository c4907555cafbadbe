package pipeline

import (
	"context"

	"sessionwatch/pkg/models"
)

// Publisher fans accepted events out to live subscribers, best effort.
type Publisher interface {
	Publish(ctx context.Context, event *models.Event) error
	Close() error
}
