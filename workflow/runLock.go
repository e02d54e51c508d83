package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/gelato_backoffice/config"
)

const runLockTTL = 30 * time.Second

// RunLocker serializes reconciliation runs and manual operations per store.
// Lock fails with ErrRunInProgress when another holder exists; the returned
// func releases the lock.
type RunLocker interface {
	Lock(ctx context.Context, storeId string) (func(), error)
}

// NewRunLocker uses the shared redis lock client when it is connected and
// falls back to an in-process lock otherwise.
func NewRunLocker() RunLocker {
	if client := config.GetRedisLock(); client != nil {
		return NewRedisRunLocker(client)
	}
	return NewLocalRunLocker()
}

// RedisRunLocker holds a redislock key for the duration of the run and keeps
// refreshing it, so runs longer than the TTL stay exclusive across instances.
type RedisRunLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

func NewRedisRunLocker(client *redislock.Client) *RedisRunLocker {
	return &RedisRunLocker{client: client, ttl: runLockTTL}
}

func (l *RedisRunLocker) Lock(ctx context.Context, storeId string) (func(), error) {
	lockKey := fmt.Sprintf("reconcile:%s", storeId)
	lock, err := l.client.Obtain(ctx, lockKey, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrRunInProgress
	} else if err != nil {
		return nil, fmt.Errorf("obtain run lock %s: %w", lockKey, err)
	}

	refreshCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(l.ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-refreshCtx.Done():
				return
			case <-ticker.C:
				if err := lock.Refresh(refreshCtx, l.ttl, nil); err != nil {
					config.LogError(config.GetLogger(), "runLock.go", "Lock", "Refreshing run lock", lockKey, err)
					return
				}
			}
		}
	}()

	return func() {
		stop()
		<-done
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			config.LogError(config.GetLogger(), "runLock.go", "Lock", "Releasing run lock", lockKey, err)
		}
	}, nil
}

// LocalRunLocker only excludes runs within the current process.
type LocalRunLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalRunLocker() *LocalRunLocker {
	return &LocalRunLocker{held: map[string]bool{}}
}

func (l *LocalRunLocker) Lock(ctx context.Context, storeId string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[storeId] {
		return nil, ErrRunInProgress
	}
	l.held[storeId] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, storeId)
			l.mu.Unlock()
		})
	}, nil
}
