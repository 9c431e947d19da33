package conversation

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one immutable message of a conversation. Rows are append-only;
// nothing in the system updates a turn after it is persisted.
type Turn struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64    `gorm:"index:idx_turns_user_created,priority:1" json:"-"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index:idx_turns_user_created,priority:2" json:"created_at"`
}

func (Turn) TableName() string { return "conversation_turns" }
