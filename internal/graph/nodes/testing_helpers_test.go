package nodes

import (
	"context"

	"github.com/orbitalhq/orbital/internal/llm"
)

// fakeLLM is a scripted llm.Client test double: each call to Complete pops
// the next response (or repeats the last one if the script is exhausted).
type fakeLLM struct {
	responses []llm.Completion
	errs      []error
	calls     int
	lastReq   llm.Request
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (llm.Completion, error) {
	f.lastReq = req
	i := f.calls
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	f.calls++

	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return llm.Completion{}, err
	}
	return f.responses[i], nil
}
