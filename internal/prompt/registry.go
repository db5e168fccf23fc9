// Package prompt keeps track of questions waiting for an answer.
package prompt

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"

	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/core/hiring"
)

var (
	// ErrUnknown is returned for answers to prompts that expired or never existed
	ErrUnknown = errors.New("prompt is not pending")
	// ErrWrongUser is returned when somebody else answers a prompt
	ErrWrongUser = errors.New("prompt belongs to another user")
	// ErrInvalidOption is returned when answer is not one of prompt options
	ErrInvalidOption = errors.New("answer is not one of the options")
)

type pending struct {
	target  string
	options []string
	created time.Time
	answer  chan hiring.Response
	expired chan struct{}
	once    sync.Once

	// set by the first accepted answer
	answered atomic.Bool
}

func (p *pending) expire() {
	p.once.Do(func() { close(p.expired) })
}

// Registry holds pending prompts until they are answered or expire
type Registry struct {
	cache *ttlcache.Cache[hiring.PromptHandle, *pending]
}

// NewRegistry creates registry. ttl is lifetime of a prompt nobody awaits yet.
func NewRegistry(ttl time.Duration) *Registry {
	cache := ttlcache.New(
		ttlcache.WithTTL[hiring.PromptHandle, *pending](ttl),
		ttlcache.WithDisableTouchOnHit[hiring.PromptHandle, *pending](),
	)
	cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[hiring.PromptHandle, *pending]) {
		if reason == ttlcache.EvictionReasonExpired {
			item.Value().expire()
		}
	})
	return &Registry{cache: cache}
}

// Start runs expiry loop, blocks until Stop
func (r *Registry) Start() {
	r.cache.Start()
}

func (r *Registry) Stop() {
	r.cache.Stop()
}

// Register adds prompt for target and returns its handle
func (r *Registry) Register(target string, options []string) hiring.PromptHandle {
	h := hiring.PromptHandle(uuid.New().String())
	r.cache.Set(h, &pending{
		target:  target,
		options: options,
		created: time.Now(),
		answer:  make(chan hiring.Response, 1),
		expired: make(chan struct{}),
	}, ttlcache.DefaultTTL)
	return h
}

// Options returns answer options of pending prompt
func (r *Registry) Options(h hiring.PromptHandle) ([]string, bool) {
	item := r.cache.Get(h)
	if item == nil {
		return nil, false
	}
	return item.Value().options, true
}

// Latest returns newest pending free text prompt of target
func (r *Registry) Latest(target string) (hiring.PromptHandle, bool) {
	var (
		found  hiring.PromptHandle
		newest time.Time
	)
	for h, item := range r.cache.Items() {
		p := item.Value()
		if p.target != target || len(p.options) > 0 || p.answered.Load() || item.IsExpired() {
			continue
		}
		if found == "" || p.created.After(newest) {
			found, newest = h, p.created
		}
	}
	return found, found != ""
}

// Resolve delivers answer of userID to prompt h. The prompt stays
// registered until Await takes the answer or the prompt expires.
func (r *Registry) Resolve(h hiring.PromptHandle, userID, value string) error {
	item := r.cache.Get(h)
	if item == nil {
		return ErrUnknown
	}
	p := item.Value()
	if p.target != userID {
		return ErrWrongUser
	}
	if len(p.options) > 0 && !contains(p.options, value) {
		return ErrInvalidOption
	}

	if !p.answered.CompareAndSwap(false, true) {
		return ErrUnknown
	}
	p.answer <- hiring.Response{UserID: userID, Value: value}
	return nil
}

// Await waits for answer to h. The prompt expires after timeout and
// hiring.ErrTimedOut is returned.
func (r *Registry) Await(ctx context.Context, h hiring.PromptHandle, timeout time.Duration) (hiring.Response, error) {
	item := r.cache.Get(h)
	if item == nil {
		return hiring.Response{}, errors.Wrapf(hiring.ErrTimedOut, "prompt %s", h)
	}
	p := item.Value()

	// answer may have arrived already
	select {
	case resp := <-p.answer:
		r.cache.Delete(h)
		return resp, nil
	default:
	}
	r.cache.Set(h, p, timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-p.answer:
		r.cache.Delete(h)
		return resp, nil
	case <-p.expired:
	case <-timer.C:
		r.cache.Delete(h)
	case <-ctx.Done():
		r.cache.Delete(h)
		return hiring.Response{}, ctx.Err()
	}

	// late answer racing the deadline still wins
	select {
	case resp := <-p.answer:
		r.cache.Delete(h)
		return resp, nil
	default:
	}
	return hiring.Response{}, errors.Wrapf(hiring.ErrTimedOut, "prompt %s", h)
}

// Len is number of pending prompts
func (r *Registry) Len() int {
	return r.cache.Len()
}

func contains(options []string, value string) bool {
	for _, o := range options {
		if strings.EqualFold(o, value) {
			return true
		}
	}
	return false
}
