// Package fixers implements the two pull-driven transforms that sit
// between the chunker and a listener: a timecode fixer that keeps
// cluster timecodes monotonic across restarts, and a starting-point
// filter that holds a listener back until it can join at a keyframe
// cluster. Both operate purely on already-chunked output and never see
// raw EBML.
package fixers

import "github.com/webmetro/relay/internal/chunk"

// gapMillis is added on top of the correcting offset so a repaired
// cluster's start is strictly past the previous cluster's end, not
// merely equal to it.
const gapMillis = 1

// ChunkTimecodeFixer rewrites ClusterHead timecodes so the outgoing
// sequence of cluster starts is non-decreasing, even when the
// underlying source resets its own clock (a broadcaster reconnect, or
// two recordings concatenated back to back). Headers and ClusterBody
// chunks pass through unchanged; a ChunkTimecodeFixer is used twice in
// the pipeline — once on ingest, shared across a channel's listeners,
// and once more per listener on egress, since a late joiner needs its
// own rebasing independent of ingest's.
//
// Grounded on andradeandrey-webmcast/broadcast.go's cast.time
// shift/recv/last bookkeeping, adapted from a running single-cluster
// rewrite to a ClusterHead-at-a-time one.
type ChunkTimecodeFixer struct {
	offset  uint64
	prevEnd uint64
	started bool
}

// NewChunkTimecodeFixer returns a fixer with no correction applied yet.
func NewChunkTimecodeFixer() *ChunkTimecodeFixer {
	return &ChunkTimecodeFixer{}
}

// Fix returns c, or for a ClusterHead chunk, an equivalent chunk with
// Start and End rebased by this fixer's running offset. It never
// mutates c: ClusterHead chunks may be shared across many listeners via
// a channel, so Fix always returns a fresh *chunk.ClusterHead.
func (f *ChunkTimecodeFixer) Fix(c chunk.Chunk) chunk.Chunk {
	head, ok := c.(chunk.ClusterHeadChunk)
	if !ok {
		return c
	}

	start, end := head.Start, head.End
	adjustedStart := start + f.offset
	if f.started && adjustedStart < f.prevEnd {
		f.offset += f.prevEnd - adjustedStart + gapMillis
		adjustedStart = start + f.offset
	}

	fixed := chunk.NewClusterHead(adjustedStart)
	fixed.Keyframe = head.Keyframe
	fixed.End = adjustedStart + (end - start)

	f.prevEnd = fixed.End
	f.started = true

	return chunk.ClusterHeadChunk{ClusterHead: fixed}
}
