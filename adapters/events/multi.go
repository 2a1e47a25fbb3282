package events

import (
	"context"
	"errors"

	"github.com/satriahrh/tawa/domain/entities"
	"github.com/satriahrh/tawa/domain/repositories"
)

// Multi fans one event out to several publishers. Every publisher is tried;
// the returned error joins all failures.
type Multi []repositories.IngestEventPublisher

var _ repositories.IngestEventPublisher = Multi(nil)

// Publish implements repositories.IngestEventPublisher
func (m Multi) Publish(ctx context.Context, event entities.IngestEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
