// Package prompt builds the ordered message list sent to the completion
// provider: persona system message first, then the bounded history, then
// the new user message.
package prompt

import (
	"strconv"
	"strings"
	"text/template"

	"github.com/derslik/tutor/internal/ai"
	"github.com/derslik/tutor/internal/conversation"
)

// Facts are the durable profile attributes interpolated into the persona.
// Zero values render as neutral placeholders, the persona block is never
// omitted.
type Facts struct {
	Name  string
	Grade int
}

type Assembler struct {
	tmpl *template.Template
}

func NewAssembler() *Assembler {
	return &Assembler{
		tmpl: template.Must(template.New("persona").Parse(personaTemplate)),
	}
}

// System renders the single persona message.
func (a *Assembler) System(f Facts) (string, error) {
	data := struct {
		Name  string
		Grade string
	}{
		Name:  f.Name,
		Grade: "unknown",
	}
	if data.Name == "" {
		data.Name = "the student"
	}
	if f.Grade > 0 {
		data.Grade = strconv.Itoa(f.Grade)
	}

	var b strings.Builder
	if err := a.tmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Build assembles the provider context. The system message is always
// exactly one message at index 0, history follows oldest first, and the
// new user message is always last.
func (a *Assembler) Build(f Facts, history []conversation.Turn, userText string) ([]ai.Message, error) {
	sys, err := a.System(f)
	if err != nil {
		return nil, err
	}

	msgs := make([]ai.Message, 0, len(history)+2)
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: sys})
	for _, t := range history {
		msgs = append(msgs, ai.Message{Role: t.Role, Content: t.Content})
	}
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: userText})
	return msgs, nil
}
