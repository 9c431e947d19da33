package turn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/derslik/tutor/internal/ai"
	"github.com/derslik/tutor/internal/conversation"
	"github.com/derslik/tutor/internal/identity"
	"github.com/derslik/tutor/internal/models"
	"github.com/derslik/tutor/internal/prompt"
	"github.com/derslik/tutor/internal/quota"
)

type recordingProvider struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
	last  []ai.Message
}

func (p *recordingProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.last = append([]ai.Message(nil), messages...)
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

type fakeTTS struct {
	audio []byte
	err   error
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &conversation.Turn{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string, tier string, remaining int) *models.User {
	t.Helper()
	u := &models.User{
		Username:       name,
		Email:          name + "@example.com",
		PasswordHash:   "x",
		Name:           "Demir",
		Grade:          6,
		Tier:           tier,
		RemainingTurns: remaining,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func newOrchestrator(db *gorm.DB, prov ai.Provider, tts speechSynthesizer, window int) *Orchestrator {
	return NewOrchestrator(
		conversation.NewRepo(db),
		quota.NewLedger(db, nil, false, 0, 0),
		models.NewProfiles(db),
		prompt.NewAssembler(),
		prov,
		tts,
		window,
		5*time.Second,
		time.Second,
	)
}

func countTurns(t *testing.T, db *gorm.DB, userID uint64) int64 {
	t.Helper()
	var cnt int64
	require.NoError(t, db.Model(&conversation.Turn{}).Where("user_id = ?", userID).Count(&cnt).Error)
	return cnt
}

func reloadRemaining(t *testing.T, db *gorm.DB, userID uint64) int {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, userID).Error)
	return u.RemainingTurns
}

func TestRun_SuccessfulTurn(t *testing.T) {
	db := openTestDB(t)
	prov := &recordingProvider{reply: "what do you get when you add two and two, try it"}
	tts := &fakeTTS{audio: []byte("mp3-bytes")}

	u := seedUser(t, db, "turn-success", models.TierDemo, 5)
	orc := newOrchestrator(db, prov, tts, 10)

	res, err := orc.Run(context.Background(), identity.User(u.ID), "2+2 kaç eder?")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Answer)
	assert.NotEmpty(t, res.AudioBase64)

	// exactly two rows: the question and the reply
	assert.EqualValues(t, 2, countTurns(t, db, u.ID))
	assert.Equal(t, 4, reloadRemaining(t, db, u.ID))

	// provider context: system first, fresh question last
	require.NotEmpty(t, prov.last)
	assert.Equal(t, ai.RoleSystem, prov.last[0].Role)
	assert.Equal(t, "2+2 kaç eder?", prov.last[len(prov.last)-1].Content)
	assert.Equal(t, ai.RoleUser, prov.last[len(prov.last)-1].Role)
}

func TestRun_EmptyMessage(t *testing.T) {
	db := openTestDB(t)
	prov := &recordingProvider{reply: "unused"}

	u := seedUser(t, db, "turn-empty", models.TierDemo, 5)
	orc := newOrchestrator(db, prov, &fakeTTS{}, 10)

	_, err := orc.Run(context.Background(), identity.User(u.ID), "   \n")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	assert.EqualValues(t, 0, countTurns(t, db, u.ID))
	assert.Equal(t, 5, reloadRemaining(t, db, u.ID))
	assert.Zero(t, prov.calls)
}

func TestRun_QuotaExhausted(t *testing.T) {
	db := openTestDB(t)
	prov := &recordingProvider{reply: "unused"}

	u := seedUser(t, db, "turn-exhausted", models.TierDemo, 0)
	orc := newOrchestrator(db, prov, &fakeTTS{}, 10)

	_, err := orc.Run(context.Background(), identity.User(u.ID), "hello")
	assert.ErrorIs(t, err, ErrQuotaExhausted)

	// gate rejects before any side effect or external call
	assert.EqualValues(t, 0, countTurns(t, db, u.ID))
	assert.Equal(t, 0, reloadRemaining(t, db, u.ID))
	assert.Zero(t, prov.calls)
}

func TestRun_CompletionFailureKeepsUserTurnAndQuota(t *testing.T) {
	db := openTestDB(t)
	prov := &recordingProvider{err: errors.New("upstream 503")}

	u := seedUser(t, db, "turn-provider-down", models.TierDemo, 5)
	orc := newOrchestrator(db, prov, &fakeTTS{}, 10)

	_, err := orc.Run(context.Background(), identity.User(u.ID), "help me")
	assert.ErrorIs(t, err, ErrCompletion)

	// the question stays recorded, the demo turn is not charged
	assert.EqualValues(t, 1, countTurns(t, db, u.ID))
	assert.Equal(t, 5, reloadRemaining(t, db, u.ID))
}

func TestRun_SpeechFailureDoesNotFailTurn(t *testing.T) {
	db := openTestDB(t)
	prov := &recordingProvider{reply: "a gentle hint"}
	tts := &fakeTTS{err: errors.New("edge-tts missing")}

	u := seedUser(t, db, "turn-tts-down", models.TierDemo, 5)
	orc := newOrchestrator(db, prov, tts, 10)

	res, err := orc.Run(context.Background(), identity.User(u.ID), "a question")
	require.NoError(t, err)
	assert.Equal(t, "a gentle hint", res.Answer)
	assert.Equal(t, "", res.AudioBase64)

	assert.EqualValues(t, 2, countTurns(t, db, u.ID))
	assert.Equal(t, 4, reloadRemaining(t, db, u.ID))
}

func TestRun_ActiveTierUnlimited(t *testing.T) {
	db := openTestDB(t)
	prov := &recordingProvider{reply: "hint"}

	u := seedUser(t, db, "turn-active", models.TierActive, 0)
	orc := newOrchestrator(db, prov, &fakeTTS{}, 10)

	for i := 0; i < 3; i++ {
		_, err := orc.Run(context.Background(), identity.User(u.ID), "again")
		require.NoError(t, err)
	}
	assert.Equal(t, 0, reloadRemaining(t, db, u.ID))
}

func TestRun_HistoryWindowExcludesDuplicateOfNewMessage(t *testing.T) {
	db := openTestDB(t)
	prov := &recordingProvider{reply: "hint"}

	u := seedUser(t, db, "turn-window", models.TierDemo, 100)
	orc := newOrchestrator(db, prov, &fakeTTS{}, 4)

	repo := conversation.NewRepo(db)
	for i := 0; i < 6; i++ {
		role := conversation.RoleUser
		if i%2 == 1 {
			role = conversation.RoleAssistant
		}
		_, err := repo.AppendTurn(context.Background(), identity.User(u.ID), role, "seed")
		require.NoError(t, err)
	}

	_, err := orc.Run(context.Background(), identity.User(u.ID), "fresh question")
	require.NoError(t, err)

	// system + bounded history + new message
	require.Len(t, prov.last, 1+4+1)
	assert.Equal(t, ai.RoleSystem, prov.last[0].Role)
	assert.Equal(t, "fresh question", prov.last[len(prov.last)-1].Content)
	// the fresh question appears exactly once
	occurrences := 0
	for _, m := range prov.last {
		if m.Content == "fresh question" {
			occurrences++
		}
	}
	assert.Equal(t, 1, occurrences)
}

func TestRun_LastDemoTurnHasOneWinner(t *testing.T) {
	db := openTestDB(t)
	prov := &recordingProvider{reply: "hint"}

	u := seedUser(t, db, "turn-race", models.TierDemo, 1)
	orc := newOrchestrator(db, prov, &fakeTTS{}, 10)
	ident := identity.User(u.ID)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			_, err := orc.Run(context.Background(), ident, "last turn")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var successes, rejections int
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrQuotaExhausted):
			rejections++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, rejections)
	assert.Equal(t, 0, reloadRemaining(t, db, u.ID))
	// only the winner persisted its pair of turns
	assert.EqualValues(t, 2, countTurns(t, db, u.ID))
}
