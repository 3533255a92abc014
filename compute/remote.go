package compute

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// ComputeFullProcedure is the Connect procedure served by NewHandler.
const ComputeFullProcedure = "/retention.v1.ComputeService/ComputeFull"

// Remote computes on a compute service reached over Connect.
type Remote struct {
	client *connect.Client[Request, Response]
	codec  Codec
}

// NewRemote creates a Remote provider for the service at baseURL. A nil
// httpClient uses http.DefaultClient.
func NewRemote(httpClient connect.HTTPClient, baseURL string, codec Codec) *Remote {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Remote{
		client: connect.NewClient[Request, Response](
			httpClient,
			strings.TrimRight(baseURL, "/")+ComputeFullProcedure,
			connect.WithCodec(codec),
		),
		codec: codec,
	}
}

func (r *Remote) Name() string { return "remote/" + r.codec.Name() }

func (r *Remote) Compute(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	res, err := r.client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		if connect.CodeOf(err) == connect.CodeInvalidArgument {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrRemote, err)
	}
	return res.Msg, nil
}

func (*Remote) Close() error { return nil }

// NewHandler serves ComputeFullProcedure backed by provider. It accepts
// every codec in codecs, CBOR when none are given. Mount the handler at the
// returned path.
func NewHandler(provider Provider, codecs ...Codec) (string, http.Handler) {
	if len(codecs) == 0 {
		codecs = []Codec{CBORCodec{}}
	}

	opts := make([]connect.HandlerOption, 0, len(codecs))
	for _, c := range codecs {
		opts = append(opts, connect.WithCodec(c))
	}

	handler := connect.NewUnaryHandler(
		ComputeFullProcedure,
		func(ctx context.Context, req *connect.Request[Request]) (*connect.Response[Response], error) {
			res, err := provider.Compute(ctx, req.Msg)
			if err != nil {
				if errors.Is(err, ErrInvalidRequest) {
					return nil, connect.NewError(connect.CodeInvalidArgument, err)
				}
				return nil, connect.NewError(connect.CodeInternal, err)
			}
			return connect.NewResponse(res), nil
		},
		opts...,
	)
	return ComputeFullProcedure, handler
}
