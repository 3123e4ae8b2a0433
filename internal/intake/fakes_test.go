package intake

import (
	"context"
	"errors"
	"sync/atomic"

	"clinix-backend/internal/llm"
)

type fakeProvider struct {
	stage string
	res   Result
	err   error
	wait  bool
	calls atomic.Int32
}

func (f *fakeProvider) Source() string { return f.stage }

func (f *fakeProvider) Extract(ctx context.Context, text string) (Result, error) {
	f.calls.Add(1)
	if f.wait {
		<-ctx.Done()
		return Result{}, &llm.ProviderError{Provider: f.stage, Err: ctx.Err()}
	}
	if f.err != nil {
		return Result{}, f.err
	}
	return f.res, nil
}

func failing(stage string) *fakeProvider {
	return &fakeProvider{stage: stage, err: &llm.ProviderError{Provider: stage, Err: llm.ErrMissingAPIKey}}
}

type fakeClient struct {
	reply string
	err   error
	last  llm.Request
}

func (f *fakeClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.last = req
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

var errUpstream = errors.New("upstream down")
