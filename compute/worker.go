package compute

import (
	"context"
	"fmt"
	"sync"
)

type job struct {
	payload []byte
	reply   chan result
}

type result struct {
	payload []byte
	err     error
}

// Worker computes on background goroutines. Requests and responses cross
// between the caller and the workers as encoded frames only, the same bytes
// a remote service would see.
type Worker struct {
	codec  Codec
	jobs   *frameChannel[job]
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker starts workers goroutines (at least one) exchanging frames
// encoded with codec.
func NewWorker(codec Codec, workers int) *Worker {
	workers = max(workers, 1)
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		codec:  codec,
		jobs:   newFrameChannel[job](ctx, workers),
		cancel: cancel,
	}

	w.wg.Add(workers)
	for range workers {
		go w.loop(ctx)
	}
	return w
}

func (w *Worker) Name() string { return "worker/" + w.codec.Name() }

// Compute encodes req, hands it to a worker and waits for the encoded
// response or for ctx to end. An abandoned job still runs to completion; its
// reply is dropped.
func (w *Worker) Compute(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payload, err := w.codec.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	j := job{payload: payload, reply: make(chan result, 1)}
	if err := w.jobs.Send(ctx, j); err != nil {
		return nil, err
	}

	select {
	case r := <-j.reply:
		if r.err != nil {
			return nil, r.err
		}
		var res Response
		if err := w.codec.Unmarshal(r.payload, &res); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return &res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.jobs.ctx.Done():
		return nil, ErrClosed
	}
}

// Close stops the workers and waits for them to exit.
func (w *Worker) Close() error {
	if w.jobs.Close() {
		w.cancel()
		w.wg.Wait()
	}
	return nil
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		j, err := w.jobs.Receive(ctx)
		if err != nil {
			return
		}
		j.reply <- w.handle(j.payload)
	}
}

func (w *Worker) handle(payload []byte) result {
	var req Request
	if err := w.codec.Unmarshal(payload, &req); err != nil {
		return result{err: fmt.Errorf("%w: %w", ErrInvalidRequest, err)}
	}

	res, err := Run(&req)
	if err != nil {
		return result{err: err}
	}

	out, err := w.codec.Marshal(res)
	if err != nil {
		return result{err: fmt.Errorf("failed to encode response: %w", err)}
	}
	return result{payload: out}
}
