package chunk

import (
	"bytes"
	"io"

	"github.com/webmetro/relay/internal/ebml"
	werrors "github.com/webmetro/relay/internal/errors"
)

type stateKind int

const (
	stateBuildingHeader stateKind = iota
	stateBuildingCluster
	stateEmittingClusterBody
	stateEmittingClusterBodyBeforeNewHeader
	stateEmittingFinalClusterBody
	stateEnd
)

// Chunker converts a pull-based ebml.EventSource into a pull-based
// sequence of Chunks. It is the hard part of this repository: it buffers
// the header prefix, mutates a ClusterHead summary across many input
// events before emitting it, handles a new EbmlHead/Segment arriving
// mid-cluster (an input restart), honors a soft buffer limit, and makes
// sure a cluster in flight when the source ends is still emitted.
//
// Chunker performs no I/O of its own; every Next call either returns
// synchronously or blocks only because the underlying EventSource blocks.
type Chunker struct {
	source    ebml.EventSource
	softLimit int

	state       stateKind
	headerBuf   *bytes.Buffer
	clusterHead *ClusterHead
	bodyBuf     *bytes.Buffer
	pendingBody []byte
}

// NewChunker wraps source, starting in the initial header-building state.
func NewChunker(source ebml.EventSource) *Chunker {
	return &Chunker{
		source:    source,
		state:     stateBuildingHeader,
		headerBuf: &bytes.Buffer{},
	}
}

// WithSoftLimit configures a soft size limit, checked before each encode,
// for both the header buffer and each cluster body buffer. Exceeding it
// produces a terminal ResourcesExceededError: the stream ends without
// emitting a partial chunk.
func (c *Chunker) WithSoftLimit(limit int) *Chunker {
	c.softLimit = limit
	return c
}

func (c *Chunker) encode(el ebml.Element, buf *bytes.Buffer, op string) error {
	if c.softLimit > 0 && buf.Len() >= c.softLimit {
		return werrors.NewResourcesExceeded(op, c.softLimit)
	}
	return ebml.Encode(el, buf)
}

// Next pulls the next Chunk. It returns io.EOF when the source is
// exhausted and every pending cluster has been flushed. An error the
// chunker raises itself (a soft-limit breach) is terminal and transitions
// the chunker to its end state without emitting a partial chunk; any other
// error from the source is returned as is and leaves the state unchanged.
func (c *Chunker) Next() (Chunk, error) {
	for {
		switch c.state {
		case stateBuildingHeader:
			chunkVal, err, handled := c.stepBuildingHeader()
			if handled {
				return chunkVal, err
			}
			// element discarded (Info/Void/Unknown) or buffered: loop for the next one

		case stateBuildingCluster:
			chunkVal, err, handled := c.stepBuildingCluster()
			if handled {
				return chunkVal, err
			}

		case stateEmittingClusterBody:
			body := c.pendingBody
			c.pendingBody = nil
			c.clusterHead = NewClusterHead(0)
			c.bodyBuf = &bytes.Buffer{}
			c.state = stateBuildingCluster
			return ClusterBody{bytes: body}, nil

		case stateEmittingClusterBodyBeforeNewHeader:
			body := c.pendingBody
			c.pendingBody = nil
			c.state = stateBuildingHeader
			return ClusterBody{bytes: body}, nil

		case stateEmittingFinalClusterBody:
			body := c.pendingBody
			c.pendingBody = nil
			c.state = stateEnd
			return ClusterBody{bytes: body}, nil

		case stateEnd:
			return nil, io.EOF
		}
	}
}

func (c *Chunker) stepBuildingHeader() (Chunk, error, bool) {
	el, err := c.source.Next()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF, true
		}
		return nil, err, true
	}

	switch el.Kind {
	case ebml.KindCluster:
		headers := Headers{bytes: append([]byte(nil), c.headerBuf.Bytes()...)}
		c.headerBuf = &bytes.Buffer{}
		c.clusterHead = NewClusterHead(0)
		c.bodyBuf = &bytes.Buffer{}
		c.state = stateBuildingCluster
		return headers, nil, true

	case ebml.KindInfo, ebml.KindVoid, ebml.KindUnknown:
		return nil, nil, false

	default:
		if err := c.encode(el, c.headerBuf, "chunker.header"); err != nil {
			c.state = stateEnd
			return nil, err, true
		}
		return nil, nil, false
	}
}

func (c *Chunker) stepBuildingCluster() (Chunk, error, bool) {
	el, err := c.source.Next()
	if err != nil {
		if err == io.EOF {
			head := c.clusterHead
			c.pendingBody = append([]byte(nil), c.bodyBuf.Bytes()...)
			c.state = stateEmittingFinalClusterBody
			return ClusterHeadChunk{head}, nil, true
		}
		return nil, err, true
	}

	switch el.Kind {
	case ebml.KindEbmlHead, ebml.KindSegment:
		head := c.clusterHead
		pendingBody := append([]byte(nil), c.bodyBuf.Bytes()...)

		newHeader := &bytes.Buffer{}
		if err := c.encode(el, newHeader, "chunker.header"); err != nil {
			c.state = stateEnd
			return nil, err, true
		}

		c.pendingBody = pendingBody
		c.headerBuf = newHeader
		c.state = stateEmittingClusterBodyBeforeNewHeader
		return ClusterHeadChunk{head}, nil, true

	case ebml.KindCluster:
		head := c.clusterHead
		c.pendingBody = append([]byte(nil), c.bodyBuf.Bytes()...)
		c.state = stateEmittingClusterBody
		return ClusterHeadChunk{head}, nil, true

	case ebml.KindTimecode:
		c.clusterHead.UpdateTimecode(el.Timecode)
		return nil, nil, false

	case ebml.KindSimpleBlock:
		if el.Block.Keyframe() {
			// Approximate: marks the cluster as a keyframe cluster if
			// *any* block in it has the keyframe flag, not strictly the
			// first video block. Downstream starting-point filters treat
			// this as a safe join point and tolerate extra ones.
			c.clusterHead.Keyframe = true
		}
		c.clusterHead.ObserveSimpleBlockTimecode(el.Block.Timecode)
		if err := c.encode(el, c.bodyBuf, "chunker.cluster_body"); err != nil {
			c.state = stateEnd
			return nil, err, true
		}
		return nil, nil, false

	case ebml.KindInfo, ebml.KindVoid, ebml.KindUnknown:
		return nil, nil, false

	default:
		if err := c.encode(el, c.bodyBuf, "chunker.cluster_body"); err != nil {
			c.state = stateEnd
			return nil, err, true
		}
		return nil, nil, false
	}
}
