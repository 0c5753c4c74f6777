package ebml

import (
	"bufio"
	"io"

	werrors "github.com/webmetro/relay/internal/errors"
)

// Known element IDs, from the Matroska/WebM specification. Grounded on
// andradeandrey-webmcast/broadcast/broadcast.go's tag constant table.
const (
	idEBMLHead  uint64 = 0x1A45DFA3
	idSegment   uint64 = 0x18538067
	idInfo      uint64 = 0x1549A966
	idVoid      uint64 = 0xEC
	idCluster   uint64 = 0x1F43B675
	idTimecode  uint64 = 0xE7
	idSimpleBlock uint64 = 0xA3
)

// Decoder is a pull-based EventSource reading EBML elements from an
// underlying byte stream (typically an HTTP request body).
//
// It decodes one element at a time without reconstructing a full element
// tree: Segment and Cluster are always emitted as bare markers the instant
// their ID+size header is parsed, because they are written with unknown
// (indeterminate) size in a live stream and cannot be skipped as a block;
// EbmlHead is a bare marker only when its size is unknown. Elements with a
// definite size (EbmlHead, Info, Void, Tracks,
// Timecode, SimpleBlock, and anything unrecognized) are read in full and
// returned with their complete encoded bytes in Raw.
type Decoder struct {
	r         *bufio.Reader
	softLimit int // 0 means unlimited
}

// NewDecoder wraps r as an EventSource.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 4096)}
}

// WithSoftLimit configures the maximum size of any single element payload
// the decoder will buffer before failing with ResourcesExceededError.
func (d *Decoder) WithSoftLimit(limit int) *Decoder {
	d.softLimit = limit
	return d
}

// Next implements EventSource.
func (d *Decoder) Next() (Element, error) {
	id, idRaw, err := readTagID(d.r)
	if err != nil {
		if err == io.EOF {
			return Element{}, io.EOF
		}
		return Element{}, asSourceError(err)
	}

	size, indeterminate, sizeRaw, err := readSize(d.r)
	if err != nil {
		return Element{}, asSourceError(err)
	}

	switch id {
	case idEBMLHead:
		if indeterminate {
			return Element{Kind: KindEbmlHead, ID: id}, nil
		}
		raw, err := d.readFull(idRaw, sizeRaw, size)
		if err != nil {
			return Element{}, err
		}
		return Element{Kind: KindEbmlHead, ID: id, Raw: raw}, nil

	case idSegment:
		// Always indeterminate in a live feed; even if a definite size
		// arrives, don't buffer it—its children follow as flat siblings.
		return Element{Kind: KindSegment, ID: id}, nil

	case idCluster:
		// Same reasoning as Segment: never buffer the body.
		return Element{Kind: KindCluster, ID: id}, nil

	case idTimecode:
		raw, err := d.readFull(idRaw, sizeRaw, size)
		if err != nil {
			return Element{}, err
		}
		return Element{Kind: KindTimecode, ID: id, Timecode: fixedUint(raw[len(idRaw)+len(sizeRaw):])}, nil

	case idSimpleBlock:
		raw, err := d.readFull(idRaw, sizeRaw, size)
		if err != nil {
			return Element{}, err
		}
		block, err := parseSimpleBlock(raw[len(idRaw)+len(sizeRaw):])
		if err != nil {
			return Element{}, err
		}
		return Element{Kind: KindSimpleBlock, ID: id, Block: block, Raw: raw}, nil

	case idVoid:
		raw, err := d.readFull(idRaw, sizeRaw, size)
		if err != nil {
			return Element{}, err
		}
		return Element{Kind: KindVoid, ID: id, Raw: raw}, nil

	case idInfo:
		raw, err := d.readFull(idRaw, sizeRaw, size)
		if err != nil {
			return Element{}, err
		}
		return Element{Kind: KindInfo, ID: id, Raw: raw}, nil

	default:
		if indeterminate {
			// An unknown element with unknown size can't be safely
			// skipped; treat it as a parse error rather than desyncing.
			return Element{}, werrors.NewParseError("ebml.decode", io.ErrUnexpectedEOF)
		}
		raw, err := d.readFull(idRaw, sizeRaw, size)
		if err != nil {
			return Element{}, err
		}
		return Element{Kind: KindOther, ID: id, Raw: raw}, nil
	}
}

func (d *Decoder) readFull(idRaw, sizeRaw []byte, payloadSize uint64) ([]byte, error) {
	if d.softLimit > 0 && payloadSize > uint64(d.softLimit) {
		return nil, werrors.NewResourcesExceeded("ebml.decode", d.softLimit)
	}
	buf := make([]byte, len(idRaw)+len(sizeRaw)+int(payloadSize))
	n := copy(buf, idRaw)
	n += copy(buf[n:], sizeRaw)
	if _, err := io.ReadFull(d.r, buf[n:]); err != nil {
		return nil, asSourceError(err)
	}
	return buf, nil
}

func asSourceError(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return werrors.NewParseError("ebml.decode", err)
	}
	return werrors.NewIOError("ebml.decode", err)
}

// parseSimpleBlock reads the track number (vint), 2-byte cluster-relative
// timecode, and flags byte from a SimpleBlock's payload. Grounded on
// mediocregopher-webm-pub/webm.parseAsSimpleBlock.
func parseSimpleBlock(data []byte) (SimpleBlock, error) {
	track, trackSize, err := parseVint(data)
	if err != nil {
		return SimpleBlock{}, werrors.NewParseError("ebml.simple_block", err)
	}
	data = data[trackSize:]
	if len(data) < 3 {
		return SimpleBlock{}, werrors.NewParseError("ebml.simple_block", io.ErrUnexpectedEOF)
	}
	timecode := int16(data[0])<<8 | int16(data[1])
	flags := data[2]
	return SimpleBlock{TrackNumber: track, Timecode: timecode, Flags: flags}, nil
}
