package agent

import (
	"strings"

	"github.com/hupe1980/agentcrew/core"
)

// Instruction is the system prompt of a ModelAgent: fixed text, text computed
// per run, or a concatenation of both. {key} placeholders in the resolved
// text are filled from session state by the flow.
type Instruction struct {
	text  string
	fn    func(*core.RunContext) (string, error)
	parts []Instruction
}

// NewInstructionFromText creates a fixed instruction.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromFunc creates an instruction computed on every run.
func NewInstructionFromFunc(fn func(*core.RunContext) (string, error)) Instruction {
	return Instruction{fn: fn}
}

// JoinInstructions resolves parts in order and separates them with a blank
// line. Parts resolving to empty text are skipped.
func JoinInstructions(parts ...Instruction) Instruction {
	return Instruction{parts: parts}
}

// IsStatic reports whether resolving never depends on the run.
func (i Instruction) IsStatic() bool {
	if i.fn != nil {
		return false
	}
	for _, p := range i.parts {
		if !p.IsStatic() {
			return false
		}
	}
	return true
}

func (i Instruction) Resolve(runCtx *core.RunContext) (string, error) {
	switch {
	case i.fn != nil:
		return i.fn(runCtx)
	case i.parts != nil:
		texts := make([]string, 0, len(i.parts))
		for _, p := range i.parts {
			t, err := p.Resolve(runCtx)
			if err != nil {
				return "", err
			}
			if t = strings.TrimSpace(t); t != "" {
				texts = append(texts, t)
			}
		}
		return strings.Join(texts, "\n\n"), nil
	default:
		return i.text, nil
	}
}
