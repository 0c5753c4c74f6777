// Package chunk implements the chunker: the state machine that converts
// an EBML element stream into a sequence of tagged chunks a listener can
// concatenate into a valid, independently-playable WebM byte stream.
package chunk

// Chunk is one of the three byte views the chunker emits. Headers and
// ClusterBody are immutable once emitted and safe to hold concurrently
// across many listeners (they're backed by a []byte that nothing mutates
// after construction); ClusterHead instead carries a *ClusterHead summary
// that keeps a small pre-encoded scratch buffer.
type Chunk interface {
	// Bytes returns this chunk's contiguous wire representation.
	Bytes() []byte
}

// Headers is the decoded-then-re-encoded prefix preceding the first
// cluster.
type Headers struct {
	bytes []byte
}

// Bytes implements Chunk.
func (h Headers) Bytes() []byte { return h.bytes }

// ClusterHeadChunk is the opening bytes of one cluster plus its summary
// metadata (keyframe flag, start/end timecodes).
type ClusterHeadChunk struct {
	*ClusterHead
}

// Bytes implements Chunk.
func (c ClusterHeadChunk) Bytes() []byte { return c.ClusterHead.Bytes() }

// ClusterBody is the encoded contents of one cluster.
type ClusterBody struct {
	bytes []byte
}

// Bytes implements Chunk.
func (b ClusterBody) Bytes() []byte { return b.bytes }
