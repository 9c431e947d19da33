package turn

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// AskJob is an asynchronously processed chat turn for a registered user.
type AskJob struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	UserID uint64 `gorm:"index:uniq_askjob_user_idempo,unique,priority:1;not null"`

	Prompt string `gorm:"type:text;not null"`

	// Unique per user, not globally: two users may reuse the same key.
	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_askjob_user_idempo,unique,priority:2" json:"idempotency_key"`

	Status JobStatus `gorm:"type:varchar(16);index;not null"`

	// Filled when succeeded
	ResultTurnID *uint64 `gorm:"index"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (AskJob) TableName() string { return "ask_jobs" }
