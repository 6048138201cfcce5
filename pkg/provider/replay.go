package provider

import "io"

// DefaultReplayChunkSize is the chunk width, in runes, used when
// replaying a cached response as a simulated stream.
const DefaultReplayChunkSize = 48

type replayStream struct {
	runes []rune
	pos   int
	size  int
}

// NewReplay returns a Stream that replays stored text in fixed-size
// chunks, so cached responses look identical to live streams.
func NewReplay(text string, chunkSize int) Stream {
	if chunkSize <= 0 {
		chunkSize = DefaultReplayChunkSize
	}
	return &replayStream{runes: []rune(text), size: chunkSize}
}

func (r *replayStream) Recv() (string, error) {
	if r.pos >= len(r.runes) {
		return "", io.EOF
	}
	end := min(r.pos+r.size, len(r.runes))
	chunk := string(r.runes[r.pos:end])
	r.pos = end
	return chunk, nil
}

func (r *replayStream) Close() error {
	r.pos = len(r.runes)
	return nil
}
