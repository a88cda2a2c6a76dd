package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docledger/internal/apperr"
	"go.uber.org/zap"
)

const (
	sendOperation  = "send"
	defaultSendTTL = 2 * time.Minute
)

var ErrSendInProgress = apperr.New(apperr.ErrBusy, "send_in_progress")

// SendGuard keeps two sends of the same document from delivering in
// parallel. Without a locker it admits every caller; the document row lock
// still orders their snapshots.
type SendGuard struct {
	locker DocumentLocker
	ttl    time.Duration
	log    *zap.Logger
}

func NewSendGuard(locker DocumentLocker, log *zap.Logger) *SendGuard {
	return &SendGuard{locker: locker, ttl: defaultSendTTL, log: log.Named("lock.send")}
}

func (g *SendGuard) Enabled() bool {
	return g != nil && g.locker != nil
}

// Acquire returns a release func, or ErrSendInProgress when another send
// holds the document.
func (g *SendGuard) Acquire(ctx context.Context, docID snowflake.ID) (func(), error) {
	if !g.Enabled() {
		return func() {}, nil
	}

	lease, err := g.locker.Lock(ctx, sendOperation, docID, g.ttl)
	if errors.Is(err, ErrDocumentLocked) {
		return nil, ErrSendInProgress
	}
	if err != nil {
		return nil, err
	}

	return func() {
		// The caller's ctx may already be done when release runs.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := g.locker.Unlock(releaseCtx, lease); err != nil {
			g.log.Warn("failed to release send lock", zap.String("key", lease.Key), zap.Error(err))
		}
	}, nil
}
