package ebml

import "io"

// minimalBytes returns v's big-endian representation with no leading zero
// bytes (at least one byte, so zero encodes as a single 0x00 byte). EBML
// element IDs and fixed-width integers are both encoded this way.
func minimalBytes(v uint64) []byte {
	if v == 0 {
		return []byte{0}
	}
	var b []byte
	for v > 0 {
		b = append([]byte{byte(v)}, b...)
		v >>= 8
	}
	return b
}

// writeDefiniteSize writes a definite-length EBML size vint for the given
// payload length. length must fit in 7 bits (true for every element this
// package writes).
func writeDefiniteSize(w io.Writer, length int) error {
	_, err := w.Write([]byte{0x80 | byte(length)})
	return err
}

// writeIndeterminateSize writes the shortest possible "unknown size" vint:
// a single byte with every data bit set.
func writeIndeterminateSize(w io.Writer) error {
	_, err := w.Write([]byte{0xFF})
	return err
}

// writeTag writes an element ID followed by a definite-size vint and payload.
func writeTag(w io.Writer, id uint64, payload []byte) error {
	if _, err := w.Write(minimalBytes(id)); err != nil {
		return err
	}
	if err := writeDefiniteSize(w, len(payload)); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// EncodeClusterMarker writes a Cluster element opener with unknown size:
// the canonical framing for a live, not-yet-closed cluster.
func EncodeClusterMarker(w io.Writer) error {
	if _, err := w.Write(minimalBytes(idCluster)); err != nil {
		return err
	}
	return writeIndeterminateSize(w)
}

// EncodeTimecode writes a Timecode element carrying an absolute
// millisecond timestamp.
func EncodeTimecode(w io.Writer, timecode uint64) error {
	return writeTag(w, idTimecode, minimalBytes(timecode))
}

// EncodeSegmentMarker writes a Segment element opener with unknown size,
// used whenever a Segment without Raw bytes is re-encoded into a header.
func EncodeSegmentMarker(w io.Writer) error {
	if _, err := w.Write(minimalBytes(idSegment)); err != nil {
		return err
	}
	return writeIndeterminateSize(w)
}

// Encode writes el back out to w. For elements captured with their
// complete original bytes (Raw != nil) this writes Raw verbatim; for bare
// markers (Cluster, Segment, an EbmlHead read with unknown size) it
// re-synthesizes minimal framing. KindInfo, KindVoid, and KindUnknown are never passed to
// Encode by the chunker (they're discarded), so those cases panic rather
// than silently emit nothing.
func Encode(el Element, w io.Writer) error {
	switch el.Kind {
	case KindCluster:
		return EncodeClusterMarker(w)
	case KindTimecode:
		return EncodeTimecode(w, el.Timecode)
	case KindSegment:
		if el.Raw != nil {
			_, err := w.Write(el.Raw)
			return err
		}
		return EncodeSegmentMarker(w)
	case KindEbmlHead:
		if el.Raw != nil {
			_, err := w.Write(el.Raw)
			return err
		}
		_, err := w.Write(minimalBytes(idEBMLHead))
		if err != nil {
			return err
		}
		return writeIndeterminateSize(w)
	case KindSimpleBlock, KindOther:
		_, err := w.Write(el.Raw)
		return err
	default:
		panic("ebml: Encode called on a discarded element kind")
	}
}
