// Package turn drives one chat turn end to end: quota gate, user-turn
// persistence, context assembly, completion, assistant-turn persistence,
// quota consumption and best-effort speech.
package turn

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/derslik/tutor/internal/ai"
	"github.com/derslik/tutor/internal/conversation"
	"github.com/derslik/tutor/internal/identity"
	"github.com/derslik/tutor/internal/prompt"
)

var (
	// ErrEmptyMessage rejects blank input before any side effect.
	ErrEmptyMessage = errors.New("turn: empty message")

	// ErrQuotaExhausted is the gate outcome, distinct from any provider
	// failure so callers can prompt for an upgrade instead of a retry.
	ErrQuotaExhausted = errors.New("turn: quota exhausted")

	// ErrCompletion wraps provider failures and timeouts. The user turn
	// stays persisted and no quota is consumed.
	ErrCompletion = errors.New("turn: completion failed")
)

// Gate is the quota surface the orchestrator needs.
type Gate interface {
	Allowed(ctx context.Context, ident identity.Identity) (bool, error)
	Consume(ctx context.Context, ident identity.Identity) error
}

// ProfileSource supplies persona facts for the system message.
type ProfileSource interface {
	Facts(ctx context.Context, ident identity.Identity) (prompt.Facts, error)
}

type Result struct {
	Answer          string
	AudioBase64     string
	AssistantTurnID uint64
}

type Orchestrator struct {
	store    conversation.Store
	gate     Gate
	profiles ProfileSource
	asm      *prompt.Assembler
	provider ai.Provider
	tts      speechSynthesizer

	historyLimit      int
	completionTimeout time.Duration
	speechTimeout     time.Duration

	// one in-flight turn per identity
	locks *keyedMutex
}

type speechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

func NewOrchestrator(
	store conversation.Store,
	gate Gate,
	profiles ProfileSource,
	asm *prompt.Assembler,
	provider ai.Provider,
	tts speechSynthesizer,
	historyLimit int,
	completionTimeout, speechTimeout time.Duration,
) *Orchestrator {
	if historyLimit <= 0 || historyLimit > 100 {
		historyLimit = 10
	}
	if completionTimeout <= 0 {
		completionTimeout = 90 * time.Second
	}
	if speechTimeout <= 0 {
		speechTimeout = 30 * time.Second
	}
	return &Orchestrator{
		store:             store,
		gate:              gate,
		profiles:          profiles,
		asm:               asm,
		provider:          provider,
		tts:               tts,
		historyLimit:      historyLimit,
		completionTimeout: completionTimeout,
		speechTimeout:     speechTimeout,
		locks:             newKeyedMutex(),
	}
}

// Run executes one full chat turn including speech synthesis.
func (o *Orchestrator) Run(ctx context.Context, ident identity.Identity, message string) (*Result, error) {
	return o.run(ctx, ident, message, true)
}

// RunText executes one chat turn without attempting speech.
func (o *Orchestrator) RunText(ctx context.Context, ident identity.Identity, message string) (*Result, error) {
	return o.run(ctx, ident, message, false)
}

func (o *Orchestrator) run(ctx context.Context, ident identity.Identity, message string, withSpeech bool) (*Result, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	// The exclusive section spans the gate through quota consumption so
	// two concurrent turns on one remaining demo turn cannot both pass.
	unlock := o.locks.Lock(ident.Key())
	defer unlock()

	allowed, err := o.gate.Allowed(ctx, ident)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrQuotaExhausted
	}

	// The user turn is recorded unconditionally: it is the record of what
	// was asked, even when the provider later fails.
	userTurn, err := o.store.AppendTurn(ctx, ident, conversation.RoleUser, message)
	if err != nil {
		return nil, err
	}

	history, err := o.store.RecentBefore(ctx, ident, o.historyLimit, userTurn.ID)
	if err != nil {
		return nil, err
	}

	facts, err := o.profiles.Facts(ctx, ident)
	if err != nil {
		return nil, err
	}

	msgs, err := o.asm.Build(facts, history, message)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, o.completionTimeout)
	reply, err := o.provider.Chat(cctx, msgs)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompletion, err)
	}

	assistantTurn, err := o.store.AppendTurn(ctx, ident, conversation.RoleAssistant, reply)
	if err != nil {
		// The answer was never delivered, so the demo turn is not charged.
		return nil, err
	}

	if err := o.gate.Consume(ctx, ident); err != nil {
		// The answer is already persisted and about to be delivered, so a
		// ledger hiccup must not fail the turn.
		log.Printf("quota consume failed identity=%s err=%v", ident.Key(), err)
	}

	res := &Result{Answer: reply, AssistantTurnID: assistantTurn.ID}

	if withSpeech && o.tts != nil {
		sctx, scancel := context.WithTimeout(ctx, o.speechTimeout)
		audio, err := o.tts.Synthesize(sctx, reply)
		scancel()
		if err != nil {
			log.Printf("speech synthesis failed identity=%s err=%v", ident.Key(), err)
		} else {
			res.AudioBase64 = base64.StdEncoding.EncodeToString(audio)
		}
	}

	return res, nil
}
