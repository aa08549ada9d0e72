package session

import "context"

// Observer receives controller notifications. Implementations must not call
// back into the controller synchronously.
type Observer interface {
	QuestionLoaded(context.Context, Snapshot)
	TranscriptUpdated(context.Context, Snapshot)
	ListeningChanged(context.Context, Snapshot)
	Submitting(context.Context, Snapshot)
	Failed(context.Context, Snapshot, error)
	Completed(context.Context, Snapshot)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) QuestionLoaded(context.Context, Snapshot)    {}
func (NopObserver) TranscriptUpdated(context.Context, Snapshot) {}
func (NopObserver) ListeningChanged(context.Context, Snapshot)  {}
func (NopObserver) Submitting(context.Context, Snapshot)        {}
func (NopObserver) Failed(context.Context, Snapshot, error)     {}
func (NopObserver) Completed(context.Context, Snapshot)         {}

type fanout []Observer

// Observers combines observers; nil entries are skipped.
func Observers(observers ...Observer) Observer {
	out := make(fanout, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	switch len(out) {
	case 0:
		return NopObserver{}
	case 1:
		return out[0]
	default:
		return out
	}
}

func (f fanout) QuestionLoaded(ctx context.Context, s Snapshot) {
	for _, o := range f {
		o.QuestionLoaded(ctx, s)
	}
}

func (f fanout) TranscriptUpdated(ctx context.Context, s Snapshot) {
	for _, o := range f {
		o.TranscriptUpdated(ctx, s)
	}
}

func (f fanout) ListeningChanged(ctx context.Context, s Snapshot) {
	for _, o := range f {
		o.ListeningChanged(ctx, s)
	}
}

func (f fanout) Submitting(ctx context.Context, s Snapshot) {
	for _, o := range f {
		o.Submitting(ctx, s)
	}
}

func (f fanout) Failed(ctx context.Context, s Snapshot, err error) {
	for _, o := range f {
		o.Failed(ctx, s, err)
	}
}

func (f fanout) Completed(ctx context.Context, s Snapshot) {
	for _, o := range f {
		o.Completed(ctx, s)
	}
}
