package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/docledger/internal/apperr"
)

const documentKeyFormat = "docledger:%s:%s"

// Compare-and-delete, so an expired holder never frees a newer lease.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var (
	ErrDocumentLocked    = apperr.New(apperr.ErrBusy, "document_locked")
	ErrLockerUnavailable = apperr.New(apperr.ErrBusy, "document_locker_unavailable")
)

// Lease is one holder's claim on a document operation.
type Lease struct {
	Key   string
	Token string
}

// DocumentLocker serializes one kind of operation per document across
// processes.
type DocumentLocker interface {
	Lock(ctx context.Context, operation string, docID snowflake.ID, ttl time.Duration) (Lease, error)
	Unlock(ctx context.Context, lease Lease) error
}

func DocumentKey(operation string, docID snowflake.ID) string {
	return fmt.Sprintf(documentKeyFormat, operation, docID.String())
}

// RedisLocker holds document leases as SET NX keys with a TTL.
type RedisLocker struct {
	client redis.UniversalClient
}

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	if client == nil {
		return nil
	}
	return &RedisLocker{client: client}
}

// Lock returns ErrDocumentLocked when another holder has the key. Redis
// failures surface as ErrLockerUnavailable; both are retryable.
func (l *RedisLocker) Lock(ctx context.Context, operation string, docID snowflake.ID, ttl time.Duration) (Lease, error) {
	if l == nil || l.client == nil {
		return Lease{}, ErrLockerUnavailable
	}
	if operation == "" || docID == 0 || ttl <= 0 {
		return Lease{}, apperr.Wrap(apperr.ErrValidation, "lock %q on document %d for %s", operation, docID, ttl)
	}

	lease := Lease{Key: DocumentKey(operation, docID), Token: uuid.NewString()}
	ok, err := l.client.SetNX(ctx, lease.Key, lease.Token, ttl).Result()
	if err != nil {
		return Lease{}, apperr.Wrap(ErrLockerUnavailable, "%s: %v", lease.Key, err)
	}
	if !ok {
		return Lease{}, apperr.Wrap(ErrDocumentLocked, "%s", lease.Key)
	}
	return lease, nil
}

func (l *RedisLocker) Unlock(ctx context.Context, lease Lease) error {
	if l == nil || l.client == nil || lease.Key == "" || lease.Token == "" {
		return nil
	}
	if err := unlockScript.Run(ctx, l.client, []string{lease.Key}, lease.Token).Err(); err != nil {
		return apperr.Wrap(ErrLockerUnavailable, "%s: %v", lease.Key, err)
	}
	return nil
}
