// internal/service/deps.go
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/unclebandit/coupon-dispatch/internal/carrier"
	"github.com/unclebandit/coupon-dispatch/internal/events"
	"github.com/unclebandit/coupon-dispatch/internal/logger"
	"github.com/unclebandit/coupon-dispatch/internal/model"
	"github.com/unclebandit/coupon-dispatch/internal/repository"
	"github.com/unclebandit/coupon-dispatch/internal/vendor"
)

// Cipher is the slice of the crypto envelope the services need.
type Cipher interface {
	Encrypt(plaintext string) ([]byte, error)
	Decrypt(blob []byte) (string, error)
	Hash(plaintext string) []byte
}

// Deps is shared by every service in this package.
type Deps struct {
	Store   repository.Store
	Vendor  vendor.Gateway
	Carrier carrier.Gateway
	Cipher  Cipher
	Events  events.Publisher
	Logger  *slog.Logger
	Locks   *RecipientLocks

	// SharedAgentDB is set when the carrier agent tables live in the main
	// database, so an enqueue can commit together with local writes.
	SharedAgentDB bool

	Now func() time.Time
}

func (d *Deps) defaults() {
	if d.Events == nil {
		d.Events = events.Noop{}
	}
	if d.Logger == nil {
		d.Logger = logger.Discard()
	}
	if d.Locks == nil {
		d.Locks = NewRecipientLocks()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
}

// carrierIn returns the gateway to use inside tx.
func (d *Deps) carrierIn(tx repository.Store) carrier.Gateway {
	if b, ok := d.Carrier.(carrier.TxBinder); ok && d.SharedAgentDB {
		return b.Bind(tx.Executor())
	}
	return d.Carrier
}

func (d *Deps) publish(ctx context.Context, issue *model.CouponIssue, from, to, source string) {
	if from == to {
		return
	}
	err := d.Events.Publish(ctx, events.StatusChange{
		CouponIssueID: issue.ID,
		CampaignID:    issue.CampaignID,
		RecipientID:   issue.RecipientID,
		From:          from,
		To:            to,
		Source:        source,
		At:            d.Now(),
	})
	if err != nil {
		d.Logger.Warn("status event not published",
			slog.Int64("coupon_issue_id", issue.ID),
			slog.Any("error", err))
	}
}

// RecipientLocks serialises work on a single recipient without holding a
// global lock across network calls.
type RecipientLocks struct {
	mu    sync.Mutex
	locks map[int64]*recipientLock
}

type recipientLock struct {
	mu   sync.Mutex
	refs int
}

func NewRecipientLocks() *RecipientLocks {
	return &RecipientLocks{locks: make(map[int64]*recipientLock)}
}

// Lock blocks until the recipient is free and returns the unlock func.
func (l *RecipientLocks) Lock(recipientID int64) func() {
	l.mu.Lock()
	rl, ok := l.locks[recipientID]
	if !ok {
		rl = &recipientLock{}
		l.locks[recipientID] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, recipientID)
		}
		l.mu.Unlock()
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
