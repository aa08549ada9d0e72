package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rbright/rehearse/internal/api"
	"github.com/rbright/rehearse/internal/failure"
	"github.com/rbright/rehearse/internal/speech"
)

type fakeAPI struct {
	mu        sync.Mutex
	questions []api.Question
	questErr  error
	answers   []api.AnswerResult
	answerErr error
	submitted []string
	gate      chan struct{}

	questionCalls atomic.Int32
	submitCalls   atomic.Int32
}

func (f *fakeAPI) CurrentQuestion(ctx context.Context, sessionID string) (api.Question, error) {
	f.questionCalls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.questErr != nil {
		return api.Question{}, f.questErr
	}
	q := f.questions[0]
	if len(f.questions) > 1 {
		f.questions = f.questions[1:]
	}
	return q, nil
}

func (f *fakeAPI) SubmitAnswer(ctx context.Context, sessionID string, answer string) (api.AnswerResult, error) {
	f.submitCalls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, sessionID+":"+answer)
	if f.answerErr != nil {
		return api.AnswerResult{}, f.answerErr
	}
	res := f.answers[0]
	f.answers = f.answers[1:]
	return res, nil
}

func (f *fakeAPI) setAnswerErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answerErr = err
}

type fakeCapture struct {
	mu          sync.Mutex
	active      bool
	unsupported bool
	onResult    speech.ResultFunc
	onError     speech.ErrorFunc
	starts      atomic.Int32
	stops       atomic.Int32
}

func (f *fakeCapture) Start(context.Context) error {
	if f.unsupported {
		return failure.ErrUnsupportedCapability
	}
	f.starts.Add(1)
	f.mu.Lock()
	f.active = true
	f.mu.Unlock()
	return nil
}

func (f *fakeCapture) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active {
		f.stops.Add(1)
	}
	f.active = false
	return nil
}

func (f *fakeCapture) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeCapture) SetOnResult(fn speech.ResultFunc) { f.onResult = fn }
func (f *fakeCapture) SetOnError(fn speech.ErrorFunc)   { f.onError = fn }

func (f *fakeCapture) emit(final, interim string) { f.onResult(final, interim) }

type fakeSpeaker struct {
	mu   sync.Mutex
	said []string
}

func (f *fakeSpeaker) Speak(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.said = append(f.said, text)
}

func (f *fakeSpeaker) utterances() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.said...)
}

type recordingObserver struct {
	mu          sync.Mutex
	loaded      []Snapshot
	transcripts []Snapshot
	failures    []error
	completed   []Snapshot
	submitting  atomic.Int32
	listening   atomic.Int32
}

func (r *recordingObserver) QuestionLoaded(_ context.Context, s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = append(r.loaded, s)
}

func (r *recordingObserver) TranscriptUpdated(_ context.Context, s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcripts = append(r.transcripts, s)
}

func (r *recordingObserver) ListeningChanged(context.Context, Snapshot) { r.listening.Add(1) }
func (r *recordingObserver) Submitting(context.Context, Snapshot)       { r.submitting.Add(1) }

func (r *recordingObserver) Failed(_ context.Context, _ Snapshot, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

func (r *recordingObserver) Completed(_ context.Context, s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, s)
}
