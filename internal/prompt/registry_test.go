package prompt

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/core/hiring"
)

func TestResolveBeforeAwait(t *testing.T) {
	r := NewRegistry(time.Minute)
	h := r.Register("alice", []string{"y", "n"})

	require.NoError(t, r.Resolve(h, "alice", "y"))

	// the answer is kept for the waiter, a second one is refused
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, ErrUnknown, r.Resolve(h, "alice", "n"))

	resp, err := r.Await(context.Background(), h, time.Second)
	require.NoError(t, err)
	assert.Equal(t, hiring.Response{UserID: "alice", Value: "y"}, resp)
	assert.Zero(t, r.Len())
}

func TestFreeTextAnswerBeforeAwait(t *testing.T) {
	r := NewRegistry(time.Minute)
	h := r.Register("alice", nil)

	latest, ok := r.Latest("alice")
	require.True(t, ok)
	require.NoError(t, r.Resolve(latest, "alice", "portfolio link"))

	// answered prompt no longer takes free text
	_, ok = r.Latest("alice")
	assert.False(t, ok)

	resp, err := r.Await(context.Background(), h, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "portfolio link", resp.Value)
}

func TestResolveWhileAwaiting(t *testing.T) {
	r := NewRegistry(time.Minute)
	h := r.Register("alice", nil)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = r.Resolve(h, "alice", "looks good")
	}()

	resp, err := r.Await(context.Background(), h, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "looks good", resp.Value)
	assert.Zero(t, r.Len())
}

func TestAwaitTimesOut(t *testing.T) {
	r := NewRegistry(time.Minute)
	go r.Start()
	defer r.Stop()

	h := r.Register("alice", nil)
	_, err := r.Await(context.Background(), h, 30*time.Millisecond)
	assert.True(t, errors.Is(err, hiring.ErrTimedOut))

	// answering afterwards is refused
	assert.Equal(t, ErrUnknown, r.Resolve(h, "alice", "late"))
}

func TestResolveValidation(t *testing.T) {
	r := NewRegistry(time.Minute)
	h := r.Register("alice", []string{"yes", "no"})

	assert.Equal(t, ErrWrongUser, r.Resolve(h, "bob", "yes"))
	assert.Equal(t, ErrInvalidOption, r.Resolve(h, "alice", "maybe"))
	assert.Equal(t, ErrUnknown, r.Resolve("nope", "alice", "yes"))
	require.NoError(t, r.Resolve(h, "alice", "YES"))
}

func TestLatestSkipsOptionPrompts(t *testing.T) {
	r := NewRegistry(time.Minute)
	_ = r.Register("alice", []string{"y", "n"})
	_, ok := r.Latest("alice")
	assert.False(t, ok)

	h := r.Register("alice", nil)
	got, ok := r.Latest("alice")
	require.True(t, ok)
	assert.Equal(t, h, got)

	_, ok = r.Latest("bob")
	assert.False(t, ok)
}

func TestAwaitCancelled(t *testing.T) {
	r := NewRegistry(time.Minute)
	h := r.Register("alice", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Await(ctx, h, time.Minute)
	assert.Equal(t, context.Canceled, err)
}
