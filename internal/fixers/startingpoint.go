package fixers

import "github.com/webmetro/relay/internal/chunk"

// StartingPointFilter holds a listener's chunks back until the stream
// reaches a cluster a decoder can actually start on. Before that point
// every chunk is dropped (a ClusterBody for a head we never forwarded is
// useless, and a Headers chunk is only needed once we actually unlock).
// The instant a keyframe ClusterHead arrives, the filter unlocks and
// replays the most recently seen Headers chunk ahead of it, then passes
// every later chunk through unchanged.
//
// Keyframe detection is approximate by construction (see
// chunk.Chunker): a cluster is marked keyframe if any contained block
// was, not strictly the first video block. A StartingPointFilter
// tolerates the occasional extra starting point this produces.
type StartingPointFilter struct {
	unlocked       bool
	pendingHeaders chunk.Chunk
}

// NewStartingPointFilter returns a filter in its locked state.
func NewStartingPointFilter() *StartingPointFilter {
	return &StartingPointFilter{}
}

// Filter returns the chunks, in order, that should be forwarded to the
// listener for c. The returned slice is empty (nil) until unlock,
// [Headers, c] on the unlocking ClusterHead ([c] if no Headers chunk has
// been seen yet), and [c] afterwards.
func (f *StartingPointFilter) Filter(c chunk.Chunk) []chunk.Chunk {
	if f.unlocked {
		return []chunk.Chunk{c}
	}

	switch v := c.(type) {
	case chunk.Headers:
		f.pendingHeaders = v
		return nil

	case chunk.ClusterHeadChunk:
		if !v.Keyframe {
			return nil
		}
		f.unlocked = true
		if f.pendingHeaders != nil {
			return []chunk.Chunk{f.pendingHeaders, c}
		}
		return []chunk.Chunk{c}

	default:
		// A ClusterBody arriving before unlock belongs to a cluster
		// whose head was never forwarded.
		return nil
	}
}
