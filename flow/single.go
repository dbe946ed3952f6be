package flow

// SingleAgentFlow is the flow a ModelAgent runs: its instructions, then its
// branch of the conversation, then the model and tool loop. Tool calls in
// a forced final round are dropped.
type SingleAgentFlow struct{ *BaseFlow }

func NewSingleAgentFlow(agent FlowAgent) *SingleAgentFlow {
	f := &SingleAgentFlow{BaseFlow: NewBaseFlow(agent)}

	for _, p := range []RequestProcessor{
		NewInstructionsProcessor(),
		NewContentsProcessor(),
	} {
		f.AddRequestProcessor(p)
	}
	f.AddResponseProcessor(NewFinalAnswerProcessor())

	return f
}
