package runlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
)

const keyPrefix = "caseflow:automation:run:"

// releaseScript deletes the key only if it still carries our token, so a run
// that outlived its TTL cannot release a lease taken over by another run.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry out only while the key still carries our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a Locker shared by every instance pointed at the same Redis.
// A held lease is extended every ttl/3 until released, so a long run keeps
// it; a crashed holder stops extending and the lease lapses after ttl.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Acquire(ctx context.Context, tenantID domain.TenantID) (Release, error) {
	key := keyPrefix + tenantID.String()
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w: %w", sentinel.ErrUnavailable, err)
	}
	if !ok {
		return nil, sentinel.ErrConflict
	}

	renewCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	renewed := make(chan struct{})
	go func() {
		defer close(renewed)
		r.renew(renewCtx, key, token)
	}()

	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			stop()
			<-renewed
			if runErr := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); runErr != nil {
				err = fmt.Errorf("release run lock: %w", runErr)
			}
		})
		return err
	}, nil
}

// renew extends the lease until ctx ends or the lease is found taken over.
func (r *Redis) renew(ctx context.Context, key, token string) {
	ticker := time.NewTicker(max(r.ttl/3, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			extended, err := extendScript.Run(ctx, r.client, []string{key}, token, r.ttl.Milliseconds()).Int()
			if err != nil {
				// Transient; the next tick retries while the lease is still live.
				continue
			}
			if extended == 0 {
				return
			}
		}
	}
}
