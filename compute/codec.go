package compute

import (
	"bytes"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/tailored-agentic-units/retention/core/codec"
	"github.com/tailored-agentic-units/retention/retention"
)

// Codec serializes Requests and Responses across the compute boundary. Its
// method set matches connect.Codec, so any Codec can be registered with a
// Connect client or handler.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

const (
	CodecCBOR = "cbor"
	CodecWire = "wire"
)

// NewCodec returns the codec registered under name.
func NewCodec(name string) (Codec, error) {
	switch name {
	case CodecCBOR, "":
		return CBORCodec{}, nil
	case CodecWire:
		return WireCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, name)
	}
}

// CBORCodec encodes with CBOR Core Deterministic Encoding: equal messages
// always produce identical bytes.
type CBORCodec struct{}

func (CBORCodec) Name() string { return CodecCBOR }

func (CBORCodec) Marshal(v any) ([]byte, error) {
	return codec.Marshal(v)
}

func (CBORCodec) Unmarshal(data []byte, v any) error {
	return codec.Unmarshal(data, v)
}

// WireCodec encodes in the protobuf binary wire format without generated
// code. Field numbers:
//
//	Request    1 projection (bytes)  2 target_n (sint64)  3 previous (Cache)
//	Cache      1 last_n (sint64)     2 length (uint64)    3 hidden (bytes, one per position)
//	Transition 1 index (uint64)      2 hidden (bool)
//	Response   1 transitions (repeated Transition)  2 cache (Cache)
//	           3 compute_duration_ns (uint64)       4 override_count (uint64)
//
// Unknown fields are skipped.
type WireCodec struct{}

func (WireCodec) Name() string { return CodecWire }

func (WireCodec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case *Request:
		return appendRequest(nil, m), nil
	case *Response:
		return appendResponse(nil, m), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

func (WireCodec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case *Request:
		*m = Request{}
		return consumeRequest(data, m)
	case *Response:
		*m = Response{}
		return consumeResponse(data, m)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

func appendRequest(b []byte, req *Request) []byte {
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, req.Projection)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(req.TargetN)))
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, appendCache(nil, req.Previous))
	return b
}

func appendCache(b []byte, c retention.Cache) []byte {
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(c.LastN)))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Length))
	if len(c.Hidden) > 0 {
		hidden := make([]byte, len(c.Hidden))
		for i, h := range c.Hidden {
			if h {
				hidden[i] = 1
			}
		}
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, hidden)
	}
	return b
}

func appendResponse(b []byte, res *Response) []byte {
	for _, t := range res.Transitions {
		var tb []byte
		tb = protowire.AppendTag(tb, 1, protowire.VarintType)
		tb = protowire.AppendVarint(tb, uint64(t.Index))
		tb = protowire.AppendTag(tb, 2, protowire.VarintType)
		tb = protowire.AppendVarint(tb, protowire.EncodeBool(t.Hidden))

		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, tb)
	}
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, appendCache(nil, res.Cache))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(res.ComputeDuration))
	b = protowire.AppendTag(b, 4, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(res.OverrideCount))
	return b
}

// consumeFields walks the fields of one message. field returns the number
// of bytes it consumed from b, negative on a malformed value.
func consumeFields(b []byte, field func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := field(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

func consumeRequest(b []byte, req *Request) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			req.Projection = retention.Projection(bytes.Clone(v))
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			req.TargetN = int(protowire.DecodeZigZag(v))
			return n, nil
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			return n, consumeCache(v, &req.Previous)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func consumeCache(b []byte, c *retention.Cache) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			c.LastN = int(protowire.DecodeZigZag(v))
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			c.Length = int(v)
			return n, nil
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			c.Hidden = make([]bool, len(v))
			for i, h := range v {
				c.Hidden[i] = h != 0
			}
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func consumeTransition(b []byte, t *retention.Transition) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			t.Index = int(v)
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			t.Hidden = protowire.DecodeBool(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func consumeResponse(b []byte, res *Response) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			var t retention.Transition
			if err := consumeTransition(v, &t); err != nil {
				return n, err
			}
			res.Transitions = append(res.Transitions, t)
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			return n, consumeCache(v, &res.Cache)
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			res.ComputeDuration = time.Duration(v)
			return n, nil
		case num == 4 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			res.OverrideCount = int(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}
