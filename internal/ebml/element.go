// Package ebml implements the minimal slice of EBML (the binary framing
// format underlying WebM/Matroska) the relay needs: a pull-style event
// source that yields one logical element at a time, and an encoder that
// writes elements back out. Grounded on andradeandrey-webmcast's inline
// vint decoder and tag table, translated from slice-based to
// bufio.Reader-based streaming.
package ebml

// Kind tags the variant carried by an Element.
type Kind int

const (
	// KindEbmlHead and KindSegment are top-level container starts; seeing
	// either again after the first cluster signals an input restart.
	KindEbmlHead Kind = iota
	KindSegment
	// KindInfo, KindVoid, KindUnknown are ignored by the chunker.
	KindInfo
	KindVoid
	KindUnknown
	// KindCluster marks the start of a new cluster.
	KindCluster
	// KindTimecode carries the cluster's absolute timecode in milliseconds.
	KindTimecode
	// KindSimpleBlock carries one media frame.
	KindSimpleBlock
	// KindOther is anything else, passed through into the current buffer.
	KindOther
)

// SimpleBlock describes the fields of a SimpleBlock the chunker cares
// about: the cluster-relative timecode delta and the keyframe flag (the
// high bit of Flags).
type SimpleBlock struct {
	TrackNumber uint64
	Timecode    int16
	Flags       byte
}

// Keyframe reports whether the high bit of Flags, the keyframe marker, is set.
func (b SimpleBlock) Keyframe() bool { return b.Flags&0x80 != 0 }

// Element is one decoded EBML element, tagged by Kind. Raw holds the
// complete encoded bytes (ID, size, and payload) for elements the chunker
// passes through verbatim (KindOther, and the definite-length elements
// decoded whole). ID is the raw element ID as read by the Decoder; Encode
// does not use it.
type Element struct {
	Kind     Kind
	ID       uint64
	Timecode uint64
	Block    SimpleBlock
	Raw      []byte
}

// EventSource produces a lazy, finite sequence of elements. Calls block
// until an element is available. io.EOF signals a clean end of stream;
// any other error is terminal.
type EventSource interface {
	Next() (Element, error)
}
