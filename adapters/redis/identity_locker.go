package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type identityLockerOptions struct {
	logger    *slog.Logger
	keyPrefix string
	mutexOpts []AutoRenewMutexOption
}

type IdentityLockerOption func(*identityLockerOptions)

// WithIdentityLockerLogger 設置日誌記錄器
func WithIdentityLockerLogger(logger *slog.Logger) IdentityLockerOption {
	return func(o *identityLockerOptions) {
		o.logger = logger
	}
}

// WithIdentityLockerKeyPrefix 設置鎖 key 的前綴
func WithIdentityLockerKeyPrefix(prefix string) IdentityLockerOption {
	return func(o *identityLockerOptions) {
		o.keyPrefix = prefix
	}
}

// WithIdentityLockerMutexOptions 設置每個身份鎖使用的 AutoRenewMutex 選項
func WithIdentityLockerMutexOptions(opts ...AutoRenewMutexOption) IdentityLockerOption {
	return func(o *identityLockerOptions) {
		o.mutexOpts = append(o.mutexOpts, opts...)
	}
}

// IdentityLocker 以身份為單位序列化跨副本的角色資料同步
type IdentityLocker struct {
	client  *redis.Client
	logger  *slog.Logger
	options identityLockerOptions
}

func NewIdentityLocker(client *redis.Client, opts ...IdentityLockerOption) (*IdentityLocker, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}

	// 默認選項
	options := identityLockerOptions{
		logger: slog.Default(),
		mutexOpts: []AutoRenewMutexOption{
			WithAutoRenewMutexAcquireTimeout(10 * time.Second),
			WithAutoRenewMutexRetryDelay(100 * time.Millisecond),
		},
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}

	return &IdentityLocker{
		client:  client,
		logger:  options.logger.With(slog.String("caller", "IdentityLocker")),
		options: options,
	}, nil
}

// Key 回傳身份鎖在 redis 中的 key
func (l *IdentityLocker) Key(identityID uuid.UUID) string {
	return l.options.keyPrefix + "lock:identity:" + identityID.String()
}

// Lock 實作 profile.ILocker
// 回傳的 context 在失去鎖時會被取消，unlock 可以安全地重複呼叫
func (l *IdentityLocker) Lock(ctx context.Context, identityID uuid.UUID) (context.Context, func(), error) {
	const op = "redis.IdentityLocker.Lock"
	key := l.Key(identityID)
	mutex := NewAutoRenewMutex(l.client, key, l.options.mutexOpts...)

	lockCtx, err := mutex.Lock(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to lock %s: %w", op, key, err)
	}

	released := false
	unlock := func() {
		if released {
			return
		}
		released = true
		if ok, err := mutex.Unlock(); err != nil || !ok {
			l.logger.Warn("Fail to release identity lock", slog.String("key", key), slog.Any("error", err))
		}
	}
	return lockCtx, unlock, nil
}
