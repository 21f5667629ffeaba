package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
)

const (
	// streamMaxLen - примерный потолок длины стрима точек
	streamMaxLen = 100_000
	// claimMinIdle - через сколько неподтверждённое сообщение упавшего консьюмера забирает другой
	claimMinIdle = 30 * time.Second
)

type streamRepository struct {
	client *redis.Client
	logger *zap.Logger
}

func NewStreamRepository(client *redis.Client, logger *zap.Logger) repository.StreamRepository {
	return &streamRepository{client: client, logger: logger}
}

func (r *streamRepository) CreateConsumerGroup(ctx context.Context, stream, group string) error {
	// "$": история до создания группы не нужна, точки быстро устаревают
	err := r.client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err == nil {
		r.logger.Info("consumer group created", zap.String("stream", stream), zap.String("group", group))
		return nil
	}
	if strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil
	}
	r.logger.Error("failed to create consumer group",
		zap.String("stream", stream),
		zap.String("group", group),
		zap.Error(err),
	)
	return fmt.Errorf("failed to create consumer group %s on %s: %w", group, stream, err)
}

// ConsumeBatch сначала забирает зависшие сообщения других консьюмеров, затем читает новые
func (r *streamRepository) ConsumeBatch(ctx context.Context, stream, group, consumer string, maxCount int) ([]domain.StreamMessage, error) {
	claimed, _, err := r.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  claimMinIdle,
		Start:    "0-0",
		Count:    int64(maxCount),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		r.logger.Warn("failed to claim pending messages", zap.String("stream", stream), zap.Error(err))
		claimed = nil
	}

	out := make([]domain.StreamMessage, 0, maxCount)
	out = r.appendMessages(ctx, out, stream, group, claimed)
	if len(out) >= maxCount {
		return out, nil
	}

	result, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    int64(maxCount - len(out)),
		Block:    -1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return out, nil
		}
		return out, fmt.Errorf("failed to read from stream %s: %w", stream, err)
	}
	for _, s := range result {
		out = r.appendMessages(ctx, out, stream, group, s.Messages)
	}
	return out, nil
}

func (r *streamRepository) appendMessages(ctx context.Context, out []domain.StreamMessage, stream, group string, msgs []redis.XMessage) []domain.StreamMessage {
	for _, msg := range msgs {
		data, ok := msg.Values["data"].(string)
		if !ok {
			r.logger.Warn("stream message without data field",
				zap.String("stream", stream),
				zap.String("message_id", msg.ID),
			)
			// иначе сообщение навсегда останется в PEL
			_ = r.client.XAck(ctx, stream, group, msg.ID).Err()
			continue
		}
		out = append(out, domain.StreamMessage{ID: msg.ID, Data: data})
	}
	return out
}

func (r *streamRepository) AckMessages(ctx context.Context, stream, group string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := r.client.XAck(ctx, stream, group, messageIDs...).Err(); err != nil {
		r.logger.Error("failed to ack messages",
			zap.String("stream", stream),
			zap.Int("count", len(messageIDs)),
			zap.Error(err),
		)
		return fmt.Errorf("failed to ack %d messages on %s: %w", len(messageIDs), stream, err)
	}
	return nil
}

func (r *streamRepository) PublishToStream(ctx context.Context, stream string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal stream payload: %w", err)
	}

	id, err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": string(payload)},
	}).Result()
	if err != nil {
		r.logger.Error("failed to publish to stream", zap.String("stream", stream), zap.Error(err))
		return fmt.Errorf("failed to publish to stream %s: %w", stream, err)
	}

	r.logger.Debug("published to stream", zap.String("stream", stream), zap.String("message_id", id))
	return nil
}
