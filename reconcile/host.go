package reconcile

import "context"

// Presenter updates the visual elements of a conversation.
type Presenter interface {
	// Refresh redraws exactly the given positions. It is called at most
	// once per pass.
	Refresh(ctx context.Context, conversationID string, indices []int) error
}

// Persister is the host's own debounced save of conversation state. The
// driver never assumes the save has completed when RequestSave returns.
type Persister interface {
	RequestSave(conversationID string)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, conversationID string, indices []int) error

func (f PresenterFunc) Refresh(ctx context.Context, conversationID string, indices []int) error {
	return f(ctx, conversationID, indices)
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(conversationID string)

func (f PersisterFunc) RequestSave(conversationID string) {
	f(conversationID)
}

type noopPresenter struct{}

func (noopPresenter) Refresh(context.Context, string, []int) error { return nil }

type noopPersister struct{}

func (noopPersister) RequestSave(string) {}
