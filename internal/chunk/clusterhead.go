package chunk

import (
	"bytes"

	"github.com/webmetro/relay/internal/ebml"
)

// ClusterHead is a mutable summary of the cluster currently being built.
// It carries just enough pre-encoded bytes (a Cluster opener plus a
// Timecode element) to let a listener start decoding at this cluster
// without waiting for the body; the scratch buffer is re-encoded in place
// every time Start changes, never reallocated. Sized per
// original_source/src/chunk.rs's ClusterHead: 16 bytes is always enough
// room for a Cluster marker (id + 1-byte unknown-size vint) plus a
// Timecode element carrying a full uint64.
type ClusterHead struct {
	Keyframe bool
	Start    uint64
	End      uint64

	bytes     [16]byte
	bytesUsed uint8
}

// NewClusterHead builds a ClusterHead opening at the given absolute
// timecode (milliseconds).
func NewClusterHead(timecode uint64) *ClusterHead {
	ch := &ClusterHead{}
	ch.UpdateTimecode(timecode)
	return ch
}

// UpdateTimecode sets the cluster's base timecode, shifting End by the
// same delta so the invariant End >= Start is preserved, and re-encodes
// the scratch bytes atomically.
func (ch *ClusterHead) UpdateTimecode(timecode uint64) {
	delta := ch.End - ch.Start
	ch.Start = timecode
	ch.End = ch.Start + delta

	var buf bytes.Buffer
	buf.Grow(16)
	// Both calls write into a 16-byte scratch sized to hold them; failure
	// here would be an encoder bug, not a runtime condition.
	if err := ebml.EncodeClusterMarker(&buf); err != nil {
		panic(err)
	}
	if err := ebml.EncodeTimecode(&buf, timecode); err != nil {
		panic(err)
	}
	ch.bytesUsed = uint8(copy(ch.bytes[:], buf.Bytes()))
}

// ObserveSimpleBlockTimecode sets End to this block's absolute timecode
// whenever that timecode is past Start. A zero or negative delta (the
// block's cluster-relative i16 timecode is <= 0) leaves End unchanged.
func (ch *ClusterHead) ObserveSimpleBlockTimecode(timecode int16) {
	if timecode <= 0 {
		return
	}
	absolute := ch.Start + uint64(timecode)
	if absolute > ch.Start {
		ch.End = absolute
	}
}

// Bytes returns the cluster-opener bytes: a Cluster marker followed by a
// Timecode element reflecting Start.
func (ch *ClusterHead) Bytes() []byte {
	return ch.bytes[:ch.bytesUsed]
}
