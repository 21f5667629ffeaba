package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
	"github.com/droszt-service/internal/repository/memory"
	"github.com/droszt-service/internal/worker/notification"
)

type answer struct {
	uid    string
	answer bool
	local  repository.LocalStore
}

type responderRecorder struct {
	answers []answer
}

func (r *responderRecorder) Respond(_ context.Context, uid string, local repository.LocalStore, a bool) error {
	r.answers = append(r.answers, answer{uid: uid, answer: a, local: local})
	return nil
}

type blockingRunner struct{}

func (blockingRunner) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func TestResponseWorker_Handle(t *testing.T) {
	locals := memory.NewLocalStoreFactory()
	rec := &responderRecorder{}
	w := notification.NewResponseWorker(rec, locals, zap.NewNop())

	require.NoError(t, w.Handle(context.Background(), domain.NotificationResponse{NotificationID: "n1", UID: "u1", Device: "tablet", Answer: true}))
	require.NoError(t, w.Handle(context.Background(), domain.NotificationResponse{NotificationID: "n2"}))

	require.Len(t, rec.answers, 1)
	assert.Equal(t, "u1", rec.answers[0].uid)
	assert.True(t, rec.answers[0].answer)
	assert.Same(t, locals.ForDevice("u1", "tablet"), rec.answers[0].local)
	assert.NotSame(t, locals.ForDevice("u1", ""), rec.answers[0].local)
}

func TestResponseWorker_StopCancelsRunner(t *testing.T) {
	w := notification.NewResponseWorker(&responderRecorder{}, memory.NewLocalStoreFactory(), zap.NewNop())
	w.Attach(blockingRunner{})

	done := make(chan error, 1)
	go func() { done <- w.Start(context.Background()) }()
	require.NoError(t, w.Stop())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("response worker did not stop")
	}
}
