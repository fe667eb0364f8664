package openphone

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the fan-out when the caller passes 0.
const DefaultConcurrency = 8

// Collect gathers the full call and message history for every
// conversation group, fanning the per-group fetches out concurrently.
//
// Each group contributes a messages fetch, and a calls fetch when it has
// exactly one participant (1:1 calls only). Tasks are joined before
// Collect returns; if any task fails, siblings are cancelled and both
// aggregates are discarded. Records from different groups interleave in
// no particular order; within a group, pagination order holds.
func Collect(ctx context.Context, c Client, phoneNumberID string, groups [][]string, concurrency int) (calls, messages []json.RawMessage, err error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex

	for _, participants := range groups {
		participants := participants
		if len(participants) == 1 {
			g.Go(func() error {
				ch, errCh := Calls(gctx, c, phoneNumberID, participants)
				for rec := range ch {
					mu.Lock()
					calls = append(calls, rec)
					mu.Unlock()
				}
				return <-errCh
			})
		}
		g.Go(func() error {
			ch, errCh := Messages(gctx, c, phoneNumberID, participants)
			for rec := range ch {
				mu.Lock()
				messages = append(messages, rec)
				mu.Unlock()
			}
			return <-errCh
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, eris.Wrap(err, "openphone: collect history")
	}
	return calls, messages, nil
}
