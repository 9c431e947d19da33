package conversation

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/derslik/tutor/internal/identity"
)

// Repo stores turns for registered users.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) AppendTurn(ctx context.Context, ident identity.Identity, role, content string) (*Turn, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	t := &Turn{
		UserID:  ident.UserID,
		Role:    role,
		Content: content,
	}
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Repo) RecentBefore(ctx context.Context, ident identity.Identity, limit int, beforeID uint64) ([]Turn, error) {
	if limit <= 0 {
		limit = 10
	}

	// created_at orders the window, id breaks ties for turns persisted
	// within the same clock tick.
	q := r.db.WithContext(ctx).
		Where("user_id = ?", ident.UserID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var turns []Turn
	if err := q.Find(&turns).Error; err != nil {
		return nil, err
	}

	// reverse to ASC (oldest -> newest)
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (r *Repo) Recent(ctx context.Context, ident identity.Identity, limit int) ([]Turn, error) {
	return r.RecentBefore(ctx, ident, limit, 0)
}
