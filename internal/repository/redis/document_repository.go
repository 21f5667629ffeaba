package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
)

// Документ locations/{name} раскладывается на ключи с общим hash tag:
//   droszt:doc:{name}                  - hash с меткой создания
//   droszt:doc:{name}:members          - list JSON записей
//   droszt:doc:{name}:emiratesMembers  - list JSON записей
//   droszt:doc:{name}:notes            - list строк
// Изменения публикуются в droszt:doc:{name}:changed.

var unionScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local items = redis.call('LRANGE', KEYS[2], 0, -1)
for _, v in ipairs(items) do
  if v == ARGV[1] then
    return 0
  end
end
redis.call('RPUSH', KEYS[2], ARGV[1])
redis.call('PUBLISH', ARGV[2], KEYS[2])
return 1
`)

var removeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local n = redis.call('LREM', KEYS[2], 1, ARGV[1])
if n > 0 then
  redis.call('PUBLISH', ARGV[2], KEYS[2])
end
return n
`)

var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'created', ARGV[1])
for i = 3, #ARGV do
  redis.call('RPUSH', KEYS[2], ARGV[i])
end
redis.call('PUBLISH', ARGV[2], KEYS[2])
return 1
`)

var replaceScript = redis.NewScript(`
redis.call('HSETNX', KEYS[1], 'created', ARGV[1])
redis.call('DEL', KEYS[2])
for i = 3, #ARGV do
  redis.call('RPUSH', KEYS[2], ARGV[i])
end
redis.call('PUBLISH', ARGV[2], KEYS[2])
return 1
`)

type documentRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewDocumentRepository создает DocumentRepository поверх Redis lists и Lua скриптов
func NewDocumentRepository(client *redis.Client, logger *zap.Logger) repository.DocumentRepository {
	return &documentRepository{
		client: client,
		logger: logger,
	}
}

func metaKey(name string) string {
	return fmt.Sprintf("droszt:doc:{%s}", name)
}

func listKey(name string, field string) string {
	return fmt.Sprintf("droszt:doc:{%s}:%s", name, field)
}

func channelKey(name string) string {
	return fmt.Sprintf("droszt:doc:{%s}:changed", name)
}

func (r *documentRepository) Get(ctx context.Context, name string) (*domain.QueueDocument, error) {
	pipe := r.client.Pipeline()
	exists := pipe.Exists(ctx, metaKey(name))
	members := pipe.LRange(ctx, listKey(name, string(domain.FieldMembers)), 0, -1)
	emirates := pipe.LRange(ctx, listKey(name, string(domain.FieldEmiratesMembers)), 0, -1)
	notes := pipe.LRange(ctx, listKey(name, "notes"), 0, -1)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read document %s: %w", name, err)
	}

	if exists.Val() == 0 {
		return nil, domain.ErrDocumentNotFound
	}

	doc := &domain.QueueDocument{Name: name, Notes: notes.Val()}

	var err error
	if doc.Members, err = decodeMembers(members.Val()); err != nil {
		return nil, fmt.Errorf("document %s members: %w", name, err)
	}
	if doc.EmiratesMembers, err = decodeMembers(emirates.Val()); err != nil {
		return nil, fmt.Errorf("document %s emiratesMembers: %w", name, err)
	}

	return doc, nil
}

func (r *documentRepository) Create(ctx context.Context, name string, field domain.QueueField, members []domain.QueueMember) error {
	args, err := encodeArgs(name, members)
	if err != nil {
		return err
	}

	created, err := createScript.Run(ctx, r.client, []string{metaKey(name), listKey(name, string(field))}, args...).Int()
	if err != nil {
		r.logger.Error("Failed to create document", zap.String("document", name), zap.Error(err))
		return fmt.Errorf("failed to create document %s: %w", name, err)
	}
	if created == 0 {
		return domain.ErrDocumentExists
	}

	r.logger.Debug("Document created", zap.String("document", name), zap.String("field", string(field)))
	return nil
}

func (r *documentRepository) ArrayUnion(ctx context.Context, name string, field domain.QueueField, member domain.QueueMember) error {
	raw, err := json.Marshal(member)
	if err != nil {
		return fmt.Errorf("failed to marshal member: %w", err)
	}

	res, err := unionScript.Run(ctx, r.client,
		[]string{metaKey(name), listKey(name, string(field))},
		string(raw), channelKey(name),
	).Int()
	if err != nil {
		r.logger.Error("ArrayUnion failed",
			zap.String("document", name),
			zap.String("field", string(field)),
			zap.Error(err))
		return fmt.Errorf("failed to union into %s.%s: %w", name, field, err)
	}
	if res == -1 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *documentRepository) ArrayRemove(ctx context.Context, name string, field domain.QueueField, member domain.QueueMember) (bool, error) {
	raw, err := json.Marshal(member)
	if err != nil {
		return false, fmt.Errorf("failed to marshal member: %w", err)
	}

	n, err := removeScript.Run(ctx, r.client,
		[]string{metaKey(name), listKey(name, string(field))},
		string(raw), channelKey(name),
	).Int()
	if err != nil {
		r.logger.Error("ArrayRemove failed",
			zap.String("document", name),
			zap.String("field", string(field)),
			zap.Error(err))
		return false, fmt.Errorf("failed to remove from %s.%s: %w", name, field, err)
	}
	return n > 0, nil
}

func (r *documentRepository) Replace(ctx context.Context, name string, field domain.QueueField, members []domain.QueueMember) error {
	args, err := encodeArgs(name, members)
	if err != nil {
		return err
	}

	if err := replaceScript.Run(ctx, r.client, []string{metaKey(name), listKey(name, string(field))}, args...).Err(); err != nil {
		r.logger.Error("Replace failed",
			zap.String("document", name),
			zap.String("field", string(field)),
			zap.Error(err))
		return fmt.Errorf("failed to replace %s.%s: %w", name, field, err)
	}
	return nil
}

func (r *documentRepository) SetNotes(ctx context.Context, name string, notes []string) error {
	args := make([]interface{}, 0, len(notes)+2)
	args = append(args, time.Now().UTC().Format(time.RFC3339), channelKey(name))
	for _, n := range notes {
		args = append(args, n)
	}

	if err := replaceScript.Run(ctx, r.client, []string{metaKey(name), listKey(name, "notes")}, args...).Err(); err != nil {
		return fmt.Errorf("failed to set notes of %s: %w", name, err)
	}
	return nil
}

// Watch подписывается на канал изменений и на каждое уведомление перечитывает документ.
// Первым отправляется текущий снимок.
func (r *documentRepository) Watch(ctx context.Context, name string) (<-chan *domain.QueueDocument, error) {
	pubsub := r.client.Subscribe(ctx, channelKey(name))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", name, err)
	}

	out := make(chan *domain.QueueDocument, 1)

	go func() {
		defer close(out)
		defer pubsub.Close()

		notifications := pubsub.Channel()

		send := func() bool {
			doc, err := r.Get(ctx, name)
			if errors.Is(err, domain.ErrDocumentNotFound) {
				doc = &domain.QueueDocument{Name: name}
			} else if err != nil {
				r.logger.Warn("Watch snapshot failed", zap.String("document", name), zap.Error(err))
				return true
			}
			select {
			case out <- doc:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send() {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-notifications:
				if !ok {
					return
				}
				if !send() {
					return
				}
			}
		}
	}()

	return out, nil
}

func encodeArgs(name string, members []domain.QueueMember) ([]interface{}, error) {
	args := make([]interface{}, 0, len(members)+2)
	args = append(args, time.Now().UTC().Format(time.RFC3339), channelKey(name))
	for _, m := range members {
		raw, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal member: %w", err)
		}
		args = append(args, string(raw))
	}
	return args, nil
}

func decodeMembers(raw []string) ([]domain.QueueMember, error) {
	out := make([]domain.QueueMember, 0, len(raw))
	for _, item := range raw {
		var m domain.QueueMember
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
