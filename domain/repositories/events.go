package repositories

import (
	"context"

	"github.com/satriahrh/tawa/domain/entities"
)

// IngestEventPublisher fans ingest progress out to interested consumers
type IngestEventPublisher interface {
	Publish(ctx context.Context, event entities.IngestEvent) error
}
