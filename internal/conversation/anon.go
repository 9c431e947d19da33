package conversation

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/derslik/tutor/internal/identity"
)

// maxRetainedTurns caps the per-session log so an abandoned session never
// grows without bound.
const maxRetainedTurns = 200

// AnonStore keeps session-lifetime conversation logs in redis. Keys expire
// after the configured TTL; every append refreshes it.
type AnonStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewAnonStore(rdb *redis.Client, ttl time.Duration) *AnonStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AnonStore{rdb: rdb, ttl: ttl}
}

func (s *AnonStore) listKey(ident identity.Identity) string {
	return "chat:" + ident.Key()
}

func (s *AnonStore) seqKey(ident identity.Identity) string {
	return "chat:" + ident.Key() + ":seq"
}

func (s *AnonStore) AppendTurn(ctx context.Context, ident identity.Identity, role, content string) (*Turn, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	seq, err := s.rdb.Incr(ctx, s.seqKey(ident)).Result()
	if err != nil {
		return nil, err
	}

	t := &Turn{
		ID:        uint64(seq),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}

	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, s.listKey(ident), b)
	pipe.LTrim(ctx, s.listKey(ident), -maxRetainedTurns, -1)
	pipe.Expire(ctx, s.listKey(ident), s.ttl)
	pipe.Expire(ctx, s.seqKey(ident), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *AnonStore) RecentBefore(ctx context.Context, ident identity.Identity, limit int, beforeID uint64) ([]Turn, error) {
	if limit <= 0 {
		limit = 10
	}

	raw, err := s.rdb.LRange(ctx, s.listKey(ident), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	// list is already oldest -> newest via RPush
	turns := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, err
		}
		if beforeID > 0 && t.ID >= beforeID {
			continue
		}
		turns = append(turns, t)
	}
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

func (s *AnonStore) Recent(ctx context.Context, ident identity.Identity, limit int) ([]Turn, error) {
	return s.RecentBefore(ctx, ident, limit, 0)
}
