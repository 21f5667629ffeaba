package location

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
	"github.com/droszt-service/internal/worker"
)

const (
	maxBatchSize    = 50
	emptyQueueSleep = 200 * time.Millisecond
	errorSleep      = time.Second
)

// TrackingHandler - точки входа фоновой задачи устройства
type TrackingHandler interface {
	HandleSample(ctx context.Context, local repository.LocalStore, sample domain.LocationSample) error
	HandleRegionEvent(ctx context.Context, local repository.LocalStore, ev domain.RegionEvent) error
}

// SampleSink получает точки для foreground геофенса устройства
type SampleSink interface {
	Publish(sample domain.LocationSample)
}

// SampleWorker разбирает стримы GPS точек и событий нативного геофенса
type SampleWorker struct {
	*worker.BaseWorker
	streamRepo   repository.StreamRepository
	tracking     TrackingHandler
	locals       repository.LocalStoreFactory
	sink         SampleSink
	consumerName string
	maxRetries   int
}

func NewSampleWorker(
	streamRepo repository.StreamRepository,
	tracking TrackingHandler,
	locals repository.LocalStoreFactory,
	sink SampleSink,
	consumerGroup string,
	maxRetries int,
	logger *zap.Logger,
) *SampleWorker {
	hostname, _ := os.Hostname()
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &SampleWorker{
		BaseWorker:   worker.NewBaseWorker("gps-samples", consumerGroup, logger),
		streamRepo:   streamRepo,
		tracking:     tracking,
		locals:       locals,
		sink:         sink,
		consumerName: fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		maxRetries:   maxRetries,
	}
}

func (w *SampleWorker) Start(ctx context.Context) error {
	logger := w.Logger()
	for _, stream := range []string{domain.StreamGPSSamples, domain.StreamRegionEvents} {
		if err := w.streamRepo.CreateConsumerGroup(ctx, stream, w.ConsumerGroup()); err != nil {
			return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
		}
	}
	logger.Info("sample worker started",
		zap.String("consumer_group", w.ConsumerGroup()),
		zap.String("consumer_name", w.consumerName),
	)

	for {
		select {
		case <-w.StopChan():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		samples, err := w.ProcessSamples(ctx)
		if err != nil {
			logger.Error("failed to process samples", zap.Error(err))
		}
		events, err2 := w.ProcessRegionEvents(ctx)
		if err2 != nil {
			logger.Error("failed to process region events", zap.Error(err2))
		}

		pause := time.Duration(0)
		switch {
		case err != nil || err2 != nil:
			pause = errorSleep
		case samples+events == 0:
			pause = emptyQueueSleep
		}
		if pause > 0 && !w.Pause(ctx, pause) {
			return nil
		}
	}
}

// ProcessSamples обрабатывает одну пачку точек; возвращает число прочитанных сообщений
func (w *SampleWorker) ProcessSamples(ctx context.Context) (int, error) {
	return w.processBatch(ctx, domain.StreamGPSSamples, func(ctx context.Context, data string) error {
		var sample domain.LocationSample
		if err := json.Unmarshal([]byte(data), &sample); err != nil {
			return errMalformed{err}
		}
		if sample.UID == "" || !sample.Point.Valid() {
			return errMalformed{fmt.Errorf("bad sample for %q", sample.UID)}
		}
		if w.sink != nil {
			w.sink.Publish(sample)
		}
		return w.tracking.HandleSample(ctx, w.locals.ForDevice(sample.UID, sample.Device), sample)
	})
}

// ProcessRegionEvents обрабатывает одну пачку событий нативного геофенса
func (w *SampleWorker) ProcessRegionEvents(ctx context.Context) (int, error) {
	return w.processBatch(ctx, domain.StreamRegionEvents, func(ctx context.Context, data string) error {
		var ev domain.RegionEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return errMalformed{err}
		}
		if ev.UID == "" || ev.Region == "" {
			return errMalformed{fmt.Errorf("bad region event for %q", ev.UID)}
		}
		return w.tracking.HandleRegionEvent(ctx, w.locals.ForDevice(ev.UID, ev.Device), ev)
	})
}

type errMalformed struct{ err error }

func (e errMalformed) Error() string { return "malformed message: " + e.err.Error() }

func (w *SampleWorker) processBatch(ctx context.Context, stream string, handle func(context.Context, string) error) (int, error) {
	logger := w.Logger().With(zap.String("stream", stream))

	messages, err := w.streamRepo.ConsumeBatch(ctx, stream, w.ConsumerGroup(), w.consumerName, maxBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to consume batch: %w", err)
	}
	if len(messages) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		// сообщение подтверждается в любом случае: точка устаревает быстрее, чем её можно переиграть
		ids = append(ids, msg.ID)

		var err error
		for attempt := 1; attempt <= w.maxRetries; attempt++ {
			err = handle(ctx, msg.Data)
			if err == nil {
				break
			}
			if _, bad := err.(errMalformed); bad {
				break
			}
		}
		if err != nil {
			logger.Warn("message handling failed", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}

	if err := w.streamRepo.AckMessages(ctx, stream, w.ConsumerGroup(), ids); err != nil {
		logger.Error("failed to ack messages", zap.Error(err))
	}
	logger.Debug("batch processed", zap.Int("count", len(messages)))
	return len(messages), nil
}
