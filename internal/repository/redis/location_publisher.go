package redis

import (
	"context"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
)

type streamLocationPublisher struct {
	streams repository.StreamRepository
}

// NewStreamLocationPublisher публикует живые координаты в stream:location:live
func NewStreamLocationPublisher(streams repository.StreamRepository) repository.LocationPublisher {
	return &streamLocationPublisher{streams: streams}
}

func (p *streamLocationPublisher) PublishLocation(ctx context.Context, loc domain.LiveLocation) error {
	return p.streams.PublishToStream(ctx, domain.StreamLiveLocation, loc)
}

func (p *streamLocationPublisher) Close() error {
	return nil
}
