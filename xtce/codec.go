package xtce

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DecodeRequest is one unit of work for DecodePackets: a byte buffer to
// decode against a named root container.
type DecodeRequest struct {
	RootContainer string
	Data          []byte
}

// DecodeResult pairs a DecodeRequest's outcome with its input index, so
// callers can correlate batch results back to their requests after
// concurrent, possibly out-of-order, completion.
type DecodeResult struct {
	Index int
	Value *ValueMap
	Err   error
}

// DecodePackets decodes each request concurrently against space_system,
// bounded by ctx, and returns one DecodeResult per request in input
// order. A single request's decode failure does not cancel the others;
// it is reported in that request's Err.
func DecodePackets(ctx context.Context, ss *SpaceSystem, reqs []DecodeRequest) ([]DecodeResult, error) {
	results := make([]DecodeResult, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			select {
			case <-gctx.Done():
				results[i] = DecodeResult{Index: i, Err: gctx.Err()}
				return nil
			default:
			}
			vm, err := DecodePacket(ss, req.RootContainer, req.Data)
			results[i] = DecodeResult{Index: i, Value: vm, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// EncodeRequest is one unit of work for EncodePackets.
type EncodeRequest struct {
	Container string
	Values    map[string]interface{}
}

// EncodeResult pairs an EncodeRequest's outcome with its input index.
type EncodeResult struct {
	Index int
	Data  []byte
	Err   error
}

// EncodePackets encodes each request concurrently against space_system,
// mirroring DecodePackets' per-request error isolation and ordering
// guarantees.
func EncodePackets(ctx context.Context, ss *SpaceSystem, reqs []EncodeRequest) ([]EncodeResult, error) {
	results := make([]EncodeResult, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			select {
			case <-gctx.Done():
				results[i] = EncodeResult{Index: i, Err: gctx.Err()}
				return nil
			default:
			}
			data, err := EncodePacket(ss, req.Container, req.Values)
			results[i] = EncodeResult{Index: i, Data: data, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
