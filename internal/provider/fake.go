package provider

import "context"

// FakeTranscriber returns a fixed transcript or error. Test helper.
type FakeTranscriber struct {
	Text  string
	Err   error
	Calls int
}

func NewFakeTranscriber(text string, err error) *FakeTranscriber {
	return &FakeTranscriber{Text: text, Err: err}
}

func (f *FakeTranscriber) Name() string { return "fake" }

func (f *FakeTranscriber) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	f.Calls++
	if f.Err != nil {
		return "", f.Err
	}
	return f.Text, nil
}

// FakeEvaluator returns a fixed raw payload or error and records the
// requests it saw.
type FakeEvaluator struct {
	Raw      string
	Err      error
	Requests []EvalRequest
}

func NewFakeEvaluator(raw string, err error) *FakeEvaluator {
	return &FakeEvaluator{Raw: raw, Err: err}
}

func (f *FakeEvaluator) Name() string { return "fake" }

func (f *FakeEvaluator) Evaluate(_ context.Context, req EvalRequest) (string, error) {
	f.Requests = append(f.Requests, req)
	if f.Err != nil {
		return "", f.Err
	}
	return f.Raw, nil
}
