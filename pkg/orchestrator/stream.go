package orchestrator

import (
	"context"
	"io"
	"strings"

	"github.com/elan-ai/elan/pkg/models"
	"github.com/elan-ai/elan/pkg/provider"
)

// ResultStream forwards chunks to the caller as the upstream produces
// them while accumulating the full text for the cache write. After Recv
// returns io.EOF, Result reports the structured outcome.
type ResultStream struct {
	ctx   context.Context
	o     *Orchestrator
	inner provider.Stream
	req   models.GenerationRequest
	prof  models.ProviderProfile

	fromCache bool
	buf       strings.Builder
	done      bool
	result    *models.GenerationResult
}

// FromCache reports whether the stream replays a cached response.
func (s *ResultStream) FromCache() bool { return s.fromCache }

// Provider returns the serving provider's ID; empty for cache replays.
func (s *ResultStream) Provider() string { return s.prof.ID }

// Recv returns the next chunk, io.EOF at the end, or a classified error.
// Chunks arrive in upstream order with no reordering or buffering beyond
// the accumulation needed for the final cache write.
func (s *ResultStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}

	chunk, err := s.inner.Recv()
	if err == io.EOF {
		s.finish()
		return "", io.EOF
	}
	if err != nil {
		s.done = true
		if s.fromCache {
			return "", err
		}
		if s.ctx != nil && s.ctx.Err() != nil {
			// Caller canceled mid-stream: abandon without records.
			return "", s.ctx.Err()
		}
		s.o.breakers.RecordFailure(s.prof.ID)
		return "", classify(err)
	}

	s.buf.WriteString(chunk)
	return chunk, nil
}

// Close releases the underlying stream without recording an outcome.
func (s *ResultStream) Close() error {
	s.done = true
	return s.inner.Close()
}

// Result returns the structured outcome. It is nil until the stream has
// been fully consumed.
func (s *ResultStream) Result() *models.GenerationResult { return s.result }

// finish records success, cost, and the cache write for live streams.
func (s *ResultStream) finish() {
	s.done = true

	if s.fromCache {
		s.result = &models.GenerationResult{
			Value:     s.buf.String(),
			FromCache: true,
		}
		return
	}
	if s.ctx != nil && s.ctx.Err() != nil {
		return
	}

	s.result = s.o.complete(s.req, s.prof, s.buf.String())
}
