package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/derslik/tutor/internal/identity"
	"github.com/derslik/tutor/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name, tier string, remaining int) *models.User {
	t.Helper()
	u := &models.User{
		Username:       name,
		Email:          name + "@example.com",
		PasswordHash:   "x",
		Tier:           tier,
		RemainingTurns: remaining,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func remaining(t *testing.T, db *gorm.DB, id uint64) int {
	t.Helper()
	var u models.User
	if err := db.First(&u, id).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return u.RemainingTurns
}

func TestAllowed_DemoTier(t *testing.T) {
	db := openTestDB(t)
	l := NewLedger(db, nil, false, 0, 0)

	withTurns := seedUser(t, db, "quota-demo-left", models.TierDemo, 2)
	exhausted := seedUser(t, db, "quota-demo-empty", models.TierDemo, 0)

	ok, err := l.Allowed(context.Background(), identity.User(withTurns.ID))
	if err != nil || !ok {
		t.Fatalf("expected allowed, got ok=%v err=%v", ok, err)
	}

	ok, err = l.Allowed(context.Background(), identity.User(exhausted.ID))
	if err != nil {
		t.Fatalf("allowed: %v", err)
	}
	if ok {
		t.Fatalf("expected gate to reject demo user with 0 remaining")
	}
}

func TestAllowed_ActiveTierIgnoresRemaining(t *testing.T) {
	db := openTestDB(t)
	l := NewLedger(db, nil, false, 0, 0)

	u := seedUser(t, db, "quota-active-zero", models.TierActive, 0)

	ok, err := l.Allowed(context.Background(), identity.User(u.ID))
	if err != nil || !ok {
		t.Fatalf("active tier must always be allowed, got ok=%v err=%v", ok, err)
	}
}

func TestAllowed_AnonymousUnmetered(t *testing.T) {
	l := NewLedger(openTestDB(t), nil, false, 0, 0)

	ok, err := l.Allowed(context.Background(), identity.Anonymous("sid-1"))
	if err != nil || !ok {
		t.Fatalf("unmetered anonymous must be allowed, got ok=%v err=%v", ok, err)
	}
	if err := l.Consume(context.Background(), identity.Anonymous("sid-1")); err != nil {
		t.Fatalf("anonymous consume must be a no-op, got %v", err)
	}
}

func newMeteredLedger(t *testing.T, limit int) (*Ledger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewLedger(openTestDB(t), rdb, true, limit, time.Hour), mr
}

func TestAllowed_AnonymousMeteredGate(t *testing.T) {
	l, _ := newMeteredLedger(t, 3)
	ident := identity.Anonymous("sid-metered")

	for i := 0; i < 3; i++ {
		ok, err := l.Allowed(context.Background(), ident)
		if err != nil || !ok {
			t.Fatalf("turn %d: expected allowed, got ok=%v err=%v", i, ok, err)
		}
		if err := l.Consume(context.Background(), ident); err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
	}

	ok, err := l.Allowed(context.Background(), ident)
	if err != nil {
		t.Fatalf("allowed: %v", err)
	}
	if ok {
		t.Fatalf("expected gate to reject session at the limit")
	}

	// other sessions have their own counter
	ok, err = l.Allowed(context.Background(), identity.Anonymous("sid-fresh"))
	if err != nil || !ok {
		t.Fatalf("fresh session must be allowed, got ok=%v err=%v", ok, err)
	}
}

func TestConsume_AnonymousMeteredCounterExpires(t *testing.T) {
	l, mr := newMeteredLedger(t, 3)
	ident := identity.Anonymous("sid-expiry")

	if err := l.Consume(context.Background(), ident); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if ttl := mr.TTL(anonKey(ident)); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("counter ttl out of range: %v", ttl)
	}

	mr.FastForward(2 * time.Hour)
	ok, err := l.Allowed(context.Background(), ident)
	if err != nil || !ok {
		t.Fatalf("expired counter must reopen the gate, got ok=%v err=%v", ok, err)
	}
}

func TestConsume_DecrementsExactlyOnce(t *testing.T) {
	db := openTestDB(t)
	l := NewLedger(db, nil, false, 0, 0)

	u := seedUser(t, db, "quota-consume", models.TierDemo, 5)

	if err := l.Consume(context.Background(), identity.User(u.ID)); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got := remaining(t, db, u.ID); got != 4 {
		t.Fatalf("expected remaining 4, got %d", got)
	}
}

func TestConsume_NeverGoesNegative(t *testing.T) {
	db := openTestDB(t)
	l := NewLedger(db, nil, false, 0, 0)

	u := seedUser(t, db, "quota-last-turn", models.TierDemo, 1)
	ident := identity.User(u.ID)

	if err := l.Consume(context.Background(), ident); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if err := l.Consume(context.Background(), ident); !errors.Is(err, ErrExhausted) {
		t.Fatalf("second consume: expected ErrExhausted, got %v", err)
	}
	if got := remaining(t, db, u.ID); got != 0 {
		t.Fatalf("remaining must stay 0, got %d", got)
	}
}

func TestConsume_ActiveTierIsNoop(t *testing.T) {
	db := openTestDB(t)
	l := NewLedger(db, nil, false, 0, 0)

	u := seedUser(t, db, "quota-active-noop", models.TierActive, models.UnlimitedTurns)

	for i := 0; i < 3; i++ {
		if err := l.Consume(context.Background(), identity.User(u.ID)); err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
	}
	if got := remaining(t, db, u.ID); got != models.UnlimitedTurns {
		t.Fatalf("active tier remaining must be untouched, got %d", got)
	}
}

func TestSetTier_UpgradeAndDowngrade(t *testing.T) {
	db := openTestDB(t)
	l := NewLedger(db, nil, false, 0, 0)

	u := seedUser(t, db, "quota-tier-flip", models.TierDemo, 0)

	if err := l.SetTier(context.Background(), u.ID, models.TierActive); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if got := remaining(t, db, u.ID); got != models.UnlimitedTurns {
		t.Fatalf("upgrade must set the unlimited sentinel, got %d", got)
	}
	ok, err := l.Allowed(context.Background(), identity.User(u.ID))
	if err != nil || !ok {
		t.Fatalf("upgraded user must be allowed, got ok=%v err=%v", ok, err)
	}

	if err := l.SetTier(context.Background(), u.ID, models.TierDemo); err != nil {
		t.Fatalf("downgrade: %v", err)
	}
	if got := remaining(t, db, u.ID); got != models.DefaultDemoTurns {
		t.Fatalf("downgrade must reset to %d, got %d", models.DefaultDemoTurns, got)
	}
}

func TestSetTier_Validation(t *testing.T) {
	db := openTestDB(t)
	l := NewLedger(db, nil, false, 0, 0)

	u := seedUser(t, db, "quota-tier-bad", models.TierDemo, 1)

	if err := l.SetTier(context.Background(), u.ID, "gold"); err == nil {
		t.Fatalf("expected error for unknown tier")
	}
	if err := l.SetTier(context.Background(), 999999, models.TierActive); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}
	// failed calls must not touch the row
	if got := remaining(t, db, u.ID); got != 1 {
		t.Fatalf("remaining must be untouched, got %d", got)
	}
}
