package crew

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/model"
)

const maxPrintedToolOutput = 2000

// printer writes the human readable step log of verbose agents.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func newPrinter(w io.Writer) *printer { return &printer{w: w} }

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) taskStart(role, description string) {
	p.printf("# Agent: %s\n## Task: %s\n\n", role, description)
}

func (p *printer) toolCall(role, name, args string) {
	p.printf("# Agent: %s\n## Using tool: %s\n## Tool Input: \n%s\n", role, name, args)
}

func (p *printer) toolResult(fr core.FunctionResponse) {
	out := model.ResponseText(fr)
	if r := []rune(out); len(r) > maxPrintedToolOutput {
		out = string(r[:maxPrintedToolOutput]) + "..."
	}
	p.printf("## Tool Output: \n%s\n\n", strings.TrimSpace(out))
}

func (p *printer) finalAnswer(role, answer string) {
	p.printf("# Agent: %s\n## Final Answer: \n%s\n\n", role, answer)
}
