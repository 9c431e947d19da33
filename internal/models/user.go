package models

import "time"

const (
	TierDemo   = "demo"
	TierActive = "active"

	// DefaultDemoTurns is the quota a fresh demo account starts with and
	// the value a downgrade resets to.
	DefaultDemoTurns = 5

	// UnlimitedTurns is the sentinel stored for active accounts. The gate
	// never reads it, the tier flag wins.
	UnlimitedTurns = 1_000_000
)

type User struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Username       string    `gorm:"type:varchar(80);uniqueIndex;not null" json:"username"`
	Email          string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash   string    `gorm:"type:varchar(100);not null" json:"-"`
	Name           string    `gorm:"type:varchar(80)" json:"name"`
	Grade          int       `json:"grade"`
	Tier           string    `gorm:"type:varchar(16);not null;default:demo" json:"tier"`
	RemainingTurns int       `gorm:"not null;default:5" json:"remaining_turns"`
	CreatedAt      time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }
