// Package locker guards order processing against at-least-once redelivery.
package locker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const doneValue = "done"

// ErrNotOwner is returned when a claim is held by another token.
var ErrNotOwner = errors.New("claim not owned by this token")

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// completeScript swaps the caller's token for the done marker and extends
// the expiry.
var completeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0`)

type Guard struct {
	rdb       redis.UniversalClient
	claimTTL  time.Duration
	retainTTL time.Duration
	log       *zap.Logger
}

// NewGuard holds in-flight claims for claimTTL and remembers completed orders
// for retainTTL.
func NewGuard(rdb redis.UniversalClient, claimTTL, retainTTL time.Duration, log *zap.Logger) *Guard {
	return &Guard{
		rdb:       rdb,
		claimTTL:  claimTTL,
		retainTTL: retainTTL,
		log:       log,
	}
}

func OrderKey(orderID int64) string {
	return fmt.Sprintf("order:%d", orderID)
}

// Claim takes the order for this worker. ok is false when another delivery of
// the same order is in flight or already finished.
func (g *Guard) Claim(ctx context.Context, orderID int64) (token string, ok bool, err error) {
	key := OrderKey(orderID)
	token = uuid.NewString()

	acquired, err := g.rdb.SetNX(ctx, key, token, g.claimTTL).Result()
	if err != nil {
		g.log.Error("claim failed",
			zap.String("key", key),
			zap.Error(err),
		)
		return "", false, fmt.Errorf("claim %s: %w", key, err)
	}
	if !acquired {
		g.log.Info("order already claimed",
			zap.String("key", key),
		)
		return "", false, nil
	}

	g.log.Debug("order claimed",
		zap.String("key", key),
		zap.String("token", token),
		zap.Duration("ttl", g.claimTTL),
	)
	return token, true, nil
}

// Complete marks a claimed order as finished so later redeliveries are
// recognised as duplicates until retainTTL passes.
func (g *Guard) Complete(ctx context.Context, orderID int64, token string) error {
	key := OrderKey(orderID)
	n, err := completeScript.Run(ctx, g.rdb, []string{key}, token, doneValue, g.retainTTL.Milliseconds()).Int()
	if err != nil {
		g.log.Error("complete claim failed",
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("complete %s: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("complete %s: %w", key, ErrNotOwner)
	}
	return nil
}

// Release drops an in-flight claim so the order can be delivered again.
func (g *Guard) Release(ctx context.Context, orderID int64, token string) error {
	key := OrderKey(orderID)
	n, err := releaseScript.Run(ctx, g.rdb, []string{key}, token).Int()
	if err != nil {
		g.log.Error("release claim failed",
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("release %s: %w", key, err)
	}
	if n == 0 {
		g.log.Warn("claim not released, token mismatch",
			zap.String("key", key),
		)
		return fmt.Errorf("release %s: %w", key, ErrNotOwner)
	}
	return nil
}

// Connect opens a client and checks it with PING.
func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return rdb, nil
}
