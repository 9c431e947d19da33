// Package quota meters demo usage. The gate is derived state: a turn is
// allowed when the tier is active or remaining turns are positive.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/derslik/tutor/internal/identity"
	"github.com/derslik/tutor/internal/models"
)

// ErrExhausted reports a normal gate outcome, not a system fault.
var ErrExhausted = errors.New("quota: no demo turns remaining")

type Ledger struct {
	db  *gorm.DB
	rdb *redis.Client

	meterAnonymous bool
	anonLimit      int
	anonTTL        time.Duration
}

func NewLedger(db *gorm.DB, rdb *redis.Client, meterAnonymous bool, anonLimit int, anonTTL time.Duration) *Ledger {
	if anonLimit <= 0 {
		anonLimit = 20
	}
	if anonTTL <= 0 {
		anonTTL = 24 * time.Hour
	}
	return &Ledger{
		db:             db,
		rdb:            rdb,
		meterAnonymous: meterAnonymous,
		anonLimit:      anonLimit,
		anonTTL:        anonTTL,
	}
}

func anonKey(ident identity.Identity) string {
	return "quota:" + ident.Key()
}

// Allowed reports whether the identity may run one more turn. It performs
// no side effects.
func (l *Ledger) Allowed(ctx context.Context, ident identity.Identity) (bool, error) {
	switch ident.Kind {
	case identity.KindAdmin:
		return true, nil

	case identity.KindAnonymous:
		if !l.meterAnonymous || l.rdb == nil {
			return true, nil
		}
		used, err := l.rdb.Get(ctx, anonKey(ident)).Int()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return true, nil
			}
			return false, err
		}
		return used < l.anonLimit, nil

	default:
		var u models.User
		if err := l.db.WithContext(ctx).First(&u, ident.UserID).Error; err != nil {
			return false, err
		}
		return u.Tier == models.TierActive || u.RemainingTurns > 0, nil
	}
}

// Consume charges one demo turn. Callers invoke it only after a verified
// successful completion whose assistant turn is already persisted. It is a
// no-op for active tiers and admins.
func (l *Ledger) Consume(ctx context.Context, ident identity.Identity) error {
	switch ident.Kind {
	case identity.KindAdmin:
		return nil

	case identity.KindAnonymous:
		if !l.meterAnonymous || l.rdb == nil {
			return nil
		}
		pipe := l.rdb.TxPipeline()
		pipe.Incr(ctx, anonKey(ident))
		pipe.Expire(ctx, anonKey(ident), l.anonTTL)
		_, err := pipe.Exec(ctx)
		return err

	default:
		// Conditional decrement: remaining can never go negative even if
		// two requests slip past the gate.
		res := l.db.WithContext(ctx).Model(&models.User{}).
			Where("id = ? AND tier = ? AND remaining_turns > 0", ident.UserID, models.TierDemo).
			Update("remaining_turns", gorm.Expr("remaining_turns - 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var u models.User
			if err := l.db.WithContext(ctx).First(&u, ident.UserID).Error; err != nil {
				return err
			}
			if u.Tier == models.TierActive {
				return nil
			}
			return ErrExhausted
		}
		return nil
	}
}

// SetTier flips a user's membership tier. Upgrading to active stores the
// unlimited sentinel; downgrading to demo resets the counter to the demo
// default. This is the only path that ever raises remaining turns.
func (l *Ledger) SetTier(ctx context.Context, userID uint64, tier string) error {
	var remaining int
	switch tier {
	case models.TierActive:
		remaining = models.UnlimitedTurns
	case models.TierDemo:
		remaining = models.DefaultDemoTurns
	default:
		return fmt.Errorf("quota: unknown tier %q", tier)
	}

	res := l.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"tier":            tier,
			"remaining_turns": remaining,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
