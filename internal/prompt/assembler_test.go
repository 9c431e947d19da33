package prompt

import (
	"strings"
	"testing"

	"github.com/derslik/tutor/internal/ai"
	"github.com/derslik/tutor/internal/conversation"
)

func TestBuild_SystemMessageAlwaysFirst(t *testing.T) {
	a := NewAssembler()

	// empty history
	msgs, err := a.Build(Facts{Name: "Demir", Grade: 6}, nil, "what is a fraction")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != ai.RoleSystem {
		t.Fatalf("message 0 must be the system message, got role %q", msgs[0].Role)
	}
	if msgs[1].Role != ai.RoleUser || msgs[1].Content != "what is a fraction" {
		t.Fatalf("last message must be the new user message, got %+v", msgs[1])
	}

	// with history the system message stays at index 0
	history := []conversation.Turn{
		{Role: conversation.RoleUser, Content: "older question"},
		{Role: conversation.RoleAssistant, Content: "older hint"},
	}
	msgs, err = a.Build(Facts{Name: "Demir", Grade: 6}, history, "newest")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if msgs[0].Role != ai.RoleSystem {
		t.Fatalf("message 0 must be the system message, got role %q", msgs[0].Role)
	}
	if got := len(msgs); got != 4 {
		t.Fatalf("expected 4 messages, got %d", got)
	}
	if msgs[1].Content != "older question" || msgs[2].Content != "older hint" {
		t.Fatalf("history must keep chronological order, got %+v", msgs[1:3])
	}
	if msgs[3].Role != ai.RoleUser || msgs[3].Content != "newest" {
		t.Fatalf("new user message must be last, got %+v", msgs[3])
	}
}

func TestSystem_InterpolatesFacts(t *testing.T) {
	a := NewAssembler()

	sys, err := a.System(Facts{Name: "Demir", Grade: 6})
	if err != nil {
		t.Fatalf("system: %v", err)
	}
	if !strings.Contains(sys, "Demir") {
		t.Fatalf("persona must name the student: %q", sys)
	}
	if !strings.Contains(sys, "grade 6") {
		t.Fatalf("persona must carry the grade: %q", sys)
	}
	if !strings.Contains(sys, "NEVER give the direct answer") {
		t.Fatalf("persona must keep the no-direct-answer rule")
	}
}

func TestSystem_NeutralPlaceholders(t *testing.T) {
	a := NewAssembler()

	sys, err := a.System(Facts{})
	if err != nil {
		t.Fatalf("system: %v", err)
	}
	if !strings.Contains(sys, "the student") {
		t.Fatalf("missing name must render a neutral placeholder: %q", sys)
	}
	if !strings.Contains(sys, "grade unknown") {
		t.Fatalf("missing grade must render a neutral placeholder: %q", sys)
	}
}
