package core

// publish_limiter.go serializes publication attempts within a process.
//
// The limiter uses a semaphore so a configurable number of publications
// (one by default) run at a time. A request that cannot get a slot within
// maxWait fails with ErrPublicationBusy instead of queueing indefinitely.
// WaitForDrain lets shutdown block until the running publication finishes.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrPublicationBusy is returned when the publication slot stays occupied
// for longer than the wait timeout.
var ErrPublicationBusy = errors.New("publication already in progress, please try again later")

// DefaultMaxConcurrentPublications keeps publications single-threaded.
const DefaultMaxConcurrentPublications = 1

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// PublishLimiter controls concurrent publication attempts.
type PublishLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewPublishLimiter creates a limiter allowing at most maxConcurrent publications.
func NewPublishLimiter(maxConcurrent int, maxWait time.Duration) *PublishLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentPublications
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &PublishLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire waits for a publication slot.
// The caller must call Release when the publication completes.
func (l *PublishLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		// Distinguish caller cancellation from our own wait timeout
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrPublicationBusy
	}
}

// Release frees a previously acquired slot.
func (l *PublishLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of running publications.
func (l *PublishLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until no publication is running or ctx is done.
func (l *PublishLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
