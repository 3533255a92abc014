package compute_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/retention/compute"
	"github.com/tailored-agentic-units/retention/observability"
	"github.com/tailored-agentic-units/retention/retention"
)

func sampleRequest() *compute.Request {
	p := make(retention.Projection, 25)
	p[3] = retention.FlagProtected
	p[7] = retention.FlagMissing
	p[20] = retention.FlagHidden
	return &compute.Request{Projection: p, TargetN: 10}
}

// overrideRequest carries a warm cache with one manual override at index 5.
func overrideRequest() *compute.Request {
	p := make(retention.Projection, 25)
	first := retention.ComputeFull(p, 10, retention.Cache{})
	p = p.Apply(first.Transitions)
	p[5] &^= retention.FlagHidden
	return &compute.Request{Projection: p, TargetN: 10, Previous: first.Cache}
}

func codecs() []compute.Codec {
	return []compute.Codec{compute.CBORCodec{}, compute.WireCodec{}}
}

func TestRun(t *testing.T) {
	res, err := compute.Run(overrideRequest())
	require.NoError(t, err)

	assert.Empty(t, res.Transitions)
	assert.Equal(t, 1, res.OverrideCount)
	assert.Equal(t, 25, res.Cache.Length)

	_, err = compute.Run(&compute.Request{TargetN: -1})
	assert.ErrorIs(t, err, compute.ErrInvalidRequest)
	assert.ErrorIs(t, err, retention.ErrInvalidRetention)

	_, err = compute.Run(nil)
	assert.ErrorIs(t, err, compute.ErrInvalidRequest)
}

func TestCodecs_PreserveComputation(t *testing.T) {
	for _, codec := range codecs() {
		t.Run(codec.Name(), func(t *testing.T) {
			for _, req := range []*compute.Request{sampleRequest(), overrideRequest()} {
				data, err := codec.Marshal(req)
				require.NoError(t, err)

				var decoded compute.Request
				require.NoError(t, codec.Unmarshal(data, &decoded))
				assert.Equal(t, req.Projection, decoded.Projection)
				assert.Equal(t, req.TargetN, decoded.TargetN)
				assert.Equal(t, req.Previous.Valid(), decoded.Previous.Valid())

				want, err := compute.Run(req)
				require.NoError(t, err)

				data, err = codec.Marshal(want)
				require.NoError(t, err)

				var got compute.Response
				require.NoError(t, codec.Unmarshal(data, &got))
				assert.Equal(t, want.Transitions, got.Transitions)
				assert.Equal(t, want.Cache, got.Cache)
				assert.Equal(t, want.OverrideCount, got.OverrideCount)
				assert.Equal(t, want.ComputeDuration, got.ComputeDuration)
			}
		})
	}
}

func TestCodecs_StaleCacheStaysStale(t *testing.T) {
	for _, codec := range codecs() {
		t.Run(codec.Name(), func(t *testing.T) {
			req := &compute.Request{
				Projection: make(retention.Projection, 4),
				TargetN:    2,
				Previous:   retention.Stale(2, 3),
			}

			data, err := codec.Marshal(req)
			require.NoError(t, err)

			var decoded compute.Request
			require.NoError(t, codec.Unmarshal(data, &decoded))
			assert.False(t, decoded.Previous.Valid())
			assert.Equal(t, 3, decoded.Previous.Length)
			assert.Equal(t, 2, decoded.Previous.LastN)
		})
	}
}

func TestCBORCodec_Deterministic(t *testing.T) {
	a, err := compute.CBORCodec{}.Marshal(overrideRequest())
	require.NoError(t, err)
	b, err := compute.CBORCodec{}.Marshal(overrideRequest())
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestWireCodec_SkipsUnknownFields(t *testing.T) {
	data, err := compute.WireCodec{}.Marshal(sampleRequest())
	require.NoError(t, err)

	// Field 15, varint 1.
	data = append(data, 15<<3, 1)

	var decoded compute.Request
	require.NoError(t, compute.WireCodec{}.Unmarshal(data, &decoded))
	assert.Equal(t, 10, decoded.TargetN)
}

func TestWireCodec_Errors(t *testing.T) {
	var req compute.Request
	assert.Error(t, compute.WireCodec{}.Unmarshal([]byte{0x0a, 0x05, 0x01}, &req), "truncated bytes field")

	_, err := compute.WireCodec{}.Marshal("not a message")
	assert.ErrorIs(t, err, compute.ErrUnsupportedType)

	var s string
	assert.ErrorIs(t, compute.WireCodec{}.Unmarshal(nil, &s), compute.ErrUnsupportedType)
}

func TestNewCodec(t *testing.T) {
	c, err := compute.NewCodec("")
	require.NoError(t, err)
	assert.Equal(t, compute.CodecCBOR, c.Name())

	c, err = compute.NewCodec(compute.CodecWire)
	require.NoError(t, err)
	assert.Equal(t, compute.CodecWire, c.Name())

	_, err = compute.NewCodec("xml")
	assert.ErrorIs(t, err, compute.ErrUnknownCodec)
}

func TestLocal(t *testing.T) {
	local := compute.NewLocal()
	assert.Equal(t, "local", local.Name())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := local.Compute(ctx, sampleRequest())
	require.NoError(t, err, "local computation runs to completion")
	assert.NotEmpty(t, res.Transitions)
	assert.NoError(t, local.Close())
}

func TestWorker_MatchesLocal(t *testing.T) {
	for _, codec := range codecs() {
		t.Run(codec.Name(), func(t *testing.T) {
			w := compute.NewWorker(codec, 2)
			defer w.Close()

			for _, req := range []*compute.Request{sampleRequest(), overrideRequest()} {
				want, err := compute.Run(req)
				require.NoError(t, err)

				got, err := w.Compute(context.Background(), req)
				require.NoError(t, err)
				assert.Equal(t, want.Transitions, got.Transitions)
				assert.Equal(t, want.Cache, got.Cache)
				assert.Equal(t, want.OverrideCount, got.OverrideCount)
			}
		})
	}
}

func TestWorker_Concurrent(t *testing.T) {
	w := compute.NewWorker(compute.CBORCodec{}, 3)
	defer w.Close()

	want, err := compute.Run(sampleRequest())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			got, err := w.Compute(context.Background(), sampleRequest())
			if assert.NoError(t, err) {
				assert.Equal(t, want.Transitions, got.Transitions)
			}
		})
	}
	wg.Wait()
}

func TestWorker_Closed(t *testing.T) {
	w := compute.NewWorker(compute.CBORCodec{}, 1)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "close is idempotent")

	_, err := w.Compute(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, compute.ErrClosed)
}

func TestWorker_InvalidRequest(t *testing.T) {
	w := compute.NewWorker(compute.CBORCodec{}, 1)
	defer w.Close()

	_, err := w.Compute(context.Background(), &compute.Request{TargetN: -2})
	assert.ErrorIs(t, err, compute.ErrInvalidRequest)
}

func newServer(t *testing.T, provider compute.Provider) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	path, handler := compute.NewHandler(provider, codecs()...)
	mux.Handle(path, handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemote_MatchesLocal(t *testing.T) {
	srv := newServer(t, compute.NewLocal())

	for _, codec := range codecs() {
		t.Run(codec.Name(), func(t *testing.T) {
			remote := compute.NewRemote(srv.Client(), srv.URL, codec)
			assert.Equal(t, "remote/"+codec.Name(), remote.Name())

			req := overrideRequest()
			want, err := compute.Run(req)
			require.NoError(t, err)

			got, err := remote.Compute(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, want.Transitions, got.Transitions)
			assert.Equal(t, want.Cache, got.Cache)
			assert.Equal(t, 1, got.OverrideCount)
		})
	}
}

func TestRemote_InvalidRequest(t *testing.T) {
	srv := newServer(t, compute.NewLocal())

	remote := compute.NewRemote(srv.Client(), srv.URL, compute.CBORCodec{})
	_, err := remote.Compute(context.Background(), &compute.Request{TargetN: -1})
	assert.ErrorIs(t, err, compute.ErrInvalidRequest)
}

func TestHandler_RejectsInvalidRequest(t *testing.T) {
	srv := newServer(t, compute.NewLocal())

	client := connect.NewClient[compute.Request, compute.Response](
		srv.Client(),
		srv.URL+compute.ComputeFullProcedure,
		connect.WithCodec(compute.CBORCodec{}),
	)
	_, err := client.CallUnary(context.Background(), connect.NewRequest(&compute.Request{TargetN: -1}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestRemote_ProviderFailure(t *testing.T) {
	srv := newServer(t, &stubProvider{err: errors.New("boom")})

	remote := compute.NewRemote(srv.Client(), srv.URL, compute.WireCodec{})
	_, err := remote.Compute(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, compute.ErrRemote)
}

func TestRemote_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	remote := compute.NewRemote(nil, url, compute.CBORCodec{})
	_, err := remote.Compute(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, compute.ErrRemote)
}

type stubProvider struct {
	delay  time.Duration
	err    error
	calls  int
	mu     sync.Mutex
	closed bool
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Compute(ctx context.Context, req *compute.Request) (*compute.Response, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return compute.Run(req)
}

func (s *stubProvider) Close() error {
	s.closed = true
	return nil
}

type captureObserver struct {
	mu     sync.Mutex
	events []observability.Event
}

func (c *captureObserver) OnEvent(ctx context.Context, event observability.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureObserver) types() []observability.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]observability.EventType, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

func TestOffloaded_Success(t *testing.T) {
	obs := &captureObserver{}
	o := compute.NewOffloaded(&stubProvider{}, compute.WithObserver(obs))

	res, err := o.Compute(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Transitions)

	assert.Equal(t, compute.StatsSnapshot{Offloaded: 1}, o.Stats())
	assert.Equal(t, []observability.EventType{compute.EventComplete}, obs.types())
}

func TestOffloaded_TimeoutFallsBack(t *testing.T) {
	obs := &captureObserver{}
	o := compute.NewOffloaded(
		&stubProvider{delay: time.Second},
		compute.WithTimeout(20*time.Millisecond),
		compute.WithObserver(obs),
	)

	want, err := compute.Run(overrideRequest())
	require.NoError(t, err)

	start := time.Now()
	got, err := o.Compute(context.Background(), overrideRequest())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	assert.Equal(t, want.Transitions, got.Transitions)
	assert.Equal(t, want.Cache, got.Cache)
	assert.Equal(t, compute.StatsSnapshot{Fallbacks: 1, Timeouts: 1}, o.Stats())
	assert.Equal(t, []observability.EventType{compute.EventFallback}, obs.types())
	assert.Equal(t, observability.LevelWarning, obs.events[0].Level)
	assert.Equal(t, true, obs.events[0].Data["timed_out"])
}

func TestOffloaded_ErrorFallsBack(t *testing.T) {
	o := compute.NewOffloaded(&stubProvider{err: errors.New("worker crashed")})

	res, err := o.Compute(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Transitions)
	assert.Equal(t, compute.StatsSnapshot{Fallbacks: 1}, o.Stats())
}

func TestOffloaded_Threshold(t *testing.T) {
	stub := &stubProvider{}
	o := compute.NewOffloaded(stub, compute.WithThreshold(100))

	_, err := o.Compute(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, 0, stub.calls)
	assert.Equal(t, compute.StatsSnapshot{Local: 1}, o.Stats())
}

func TestOffloaded_InvalidRequest(t *testing.T) {
	stub := &stubProvider{}
	o := compute.NewOffloaded(stub)

	_, err := o.Compute(context.Background(), &compute.Request{TargetN: -1})
	assert.ErrorIs(t, err, compute.ErrInvalidRequest)
	assert.Equal(t, 0, stub.calls)
}

func TestOffloaded_Close(t *testing.T) {
	stub := &stubProvider{}
	o := compute.NewOffloaded(stub)

	require.NoError(t, o.Close())
	assert.True(t, stub.closed)
	assert.Equal(t, "offloaded/stub", o.Name())
}

func TestObserved(t *testing.T) {
	obs := &captureObserver{}
	stub := &stubProvider{}
	o := compute.Observe(stub, obs)

	res, err := o.Compute(context.Background(), overrideRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, res.OverrideCount)
	assert.Equal(t, "stub", o.Name())

	stub.err = errors.New("boom")
	_, err = o.Compute(context.Background(), sampleRequest())
	assert.Error(t, err)

	assert.Equal(t, []observability.EventType{compute.EventServed, compute.EventFailed}, obs.types())
	assert.Contains(t, obs.events[0].Data, "duration_ms")
	assert.Equal(t, 1, obs.events[0].Data["overrides"])

	require.NoError(t, o.Close())
	assert.True(t, stub.closed)
}
