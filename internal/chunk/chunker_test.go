package chunk

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webmetro/relay/internal/ebml"
	werrors "github.com/webmetro/relay/internal/errors"
)

// fakeSource replays a fixed slice of elements, then returns io.EOF
// forever, matching the contract a real ebml.Decoder gives once its
// underlying reader is exhausted.
type fakeSource struct {
	elements []ebml.Element
	pos      int
}

func (f *fakeSource) Next() (ebml.Element, error) {
	if f.pos >= len(f.elements) {
		return ebml.Element{}, io.EOF
	}
	el := f.elements[f.pos]
	f.pos++
	return el, nil
}

func ebmlHead() ebml.Element {
	return ebml.Element{Kind: ebml.KindEbmlHead, Raw: []byte{0x1A, 0x45, 0xDF, 0xA3, 0x80}}
}

func segment() ebml.Element {
	return ebml.Element{Kind: ebml.KindSegment}
}

func cluster() ebml.Element {
	return ebml.Element{Kind: ebml.KindCluster}
}

func timecode(tc uint64) ebml.Element {
	return ebml.Element{Kind: ebml.KindTimecode, Timecode: tc}
}

func simpleBlock(keyframe bool, tc int16) ebml.Element {
	flags := byte(0)
	if keyframe {
		flags = 0x80
	}
	return ebml.Element{
		Kind:  ebml.KindSimpleBlock,
		Block: ebml.SimpleBlock{TrackNumber: 1, Timecode: tc, Flags: flags},
		Raw:   []byte{0x81, byte(tc >> 8), byte(tc), flags, 0x00},
	}
}

func drain(t *testing.T, c *Chunker) []Chunk {
	t.Helper()
	var out []Chunk
	for {
		ch, err := c.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, ch)
	}
}

// S1: empty input produces no chunks.
func TestChunker_EmptyInput(t *testing.T) {
	c := NewChunker(&fakeSource{})
	chunks := drain(t, c)
	assert.Empty(t, chunks)
}

// S2: headers with no cluster ever produce no chunks; the header bytes
// are buffered but never have anywhere to be emitted from.
func TestChunker_HeadersOnly_NoClusterEver(t *testing.T) {
	c := NewChunker(&fakeSource{elements: []ebml.Element{ebmlHead(), segment()}})
	chunks := drain(t, c)
	assert.Empty(t, chunks)
}

// S3: one cluster with one keyframe block produces Headers, ClusterHead,
// ClusterBody, in order.
func TestChunker_OneCluster(t *testing.T) {
	src := &fakeSource{elements: []ebml.Element{
		ebmlHead(), segment(),
		cluster(), timecode(1000), simpleBlock(true, 0),
	}}
	c := NewChunker(src)
	chunks := drain(t, c)
	require.Len(t, chunks, 3)

	h, ok := chunks[0].(Headers)
	require.True(t, ok)
	assert.NotEmpty(t, h.Bytes())

	head, ok := chunks[1].(ClusterHeadChunk)
	require.True(t, ok)
	assert.True(t, head.Keyframe)
	assert.Equal(t, uint64(1000), head.Start)

	body, ok := chunks[2].(ClusterBody)
	require.True(t, ok)
	assert.NotEmpty(t, body.Bytes())
}

// S4: two clusters back to back each produce their own ClusterHead and
// ClusterBody, sharing one Headers chunk.
func TestChunker_TwoClusters(t *testing.T) {
	src := &fakeSource{elements: []ebml.Element{
		ebmlHead(), segment(),
		cluster(), timecode(0), simpleBlock(true, 0),
		cluster(), timecode(1000), simpleBlock(false, 0),
	}}
	c := NewChunker(src)
	chunks := drain(t, c)
	require.Len(t, chunks, 5)

	_, ok := chunks[0].(Headers)
	require.True(t, ok)

	firstHead := chunks[1].(ClusterHeadChunk)
	assert.Equal(t, uint64(0), firstHead.Start)
	_, ok = chunks[2].(ClusterBody)
	require.True(t, ok)

	secondHead := chunks[3].(ClusterHeadChunk)
	assert.Equal(t, uint64(1000), secondHead.Start)
	_, ok = chunks[4].(ClusterBody)
	require.True(t, ok)
}

// S5: a new EbmlHead arriving mid-cluster (an input restart) flushes the
// cluster in progress before resuming header-building.
func TestChunker_MidStreamRestart(t *testing.T) {
	src := &fakeSource{elements: []ebml.Element{
		ebmlHead(), segment(),
		cluster(), timecode(0), simpleBlock(true, 0),
		ebmlHead(), segment(),
		cluster(), timecode(0), simpleBlock(true, 0),
	}}
	c := NewChunker(src)
	chunks := drain(t, c)
	// Headers, ClusterHead, ClusterBody, Headers, ClusterHead, ClusterBody.
	require.Len(t, chunks, 6)
	assert.IsType(t, Headers{}, chunks[0])
	assert.IsType(t, ClusterHeadChunk{}, chunks[1])
	assert.IsType(t, ClusterBody{}, chunks[2])
	assert.IsType(t, Headers{}, chunks[3])
	assert.IsType(t, ClusterHeadChunk{}, chunks[4])
	assert.IsType(t, ClusterBody{}, chunks[5])
}

// S6: a cluster still open when the source ends is flushed exactly once,
// as a final ClusterHead/ClusterBody pair, rather than dropped.
func TestChunker_FinalClusterFlushedOnEOF(t *testing.T) {
	src := &fakeSource{elements: []ebml.Element{
		ebmlHead(), segment(),
		cluster(), timecode(500), simpleBlock(true, 10),
	}}
	c := NewChunker(src)
	chunks := drain(t, c)
	require.Len(t, chunks, 3)
	head := chunks[1].(ClusterHeadChunk)
	assert.Equal(t, uint64(500), head.Start)
	assert.Equal(t, uint64(510), head.End)

	// Further calls keep returning io.EOF rather than re-emitting.
	_, err := c.Next()
	assert.Equal(t, io.EOF, err)
}

// Breaching the soft limit during a cluster body is terminal: no partial
// ClusterHead/ClusterBody is emitted for the cluster in progress, and
// the chunker does not recover afterwards.
func TestChunker_SoftLimitBreach_ClusterBody(t *testing.T) {
	src := &fakeSource{elements: []ebml.Element{
		ebmlHead(), segment(),
		cluster(), timecode(0),
		simpleBlock(true, 0), simpleBlock(false, 1), simpleBlock(false, 2),
	}}
	c := NewChunker(src).WithSoftLimit(8)

	// Headers chunk comes through fine.
	_, err := c.Next()
	require.NoError(t, err)

	// The third block (10 bytes already buffered) observes the breach
	// before the cluster ever gets to emit a ClusterHead.
	_, err = c.Next()
	require.Error(t, err)
	assert.True(t, werrors.IsResourcesExceeded(err))

	// Terminal: the chunker is now in its end state and never resumes
	// emitting chunks for the rest of the stream.
	_, err = c.Next()
	assert.Error(t, err)
}

// Breaching the soft limit while buffering headers is terminal too. The
// limit is checked before each encode, so the first element (5 raw
// bytes) is let through even though it alone exceeds a 4-byte limit;
// the element after it is what observes the breach.
func TestChunker_SoftLimitBreach_Header(t *testing.T) {
	src := &fakeSource{elements: []ebml.Element{
		ebmlHead(),
		{Kind: ebml.KindOther, Raw: bytes.Repeat([]byte{0xAA}, 4)},
	}}
	c := NewChunker(src).WithSoftLimit(4)
	_, err := c.Next()
	require.Error(t, err)
	assert.True(t, werrors.IsResourcesExceeded(err))
}

// Info/Void/Unknown elements are discarded without affecting output.
func TestChunker_DiscardsInfoVoidUnknown(t *testing.T) {
	src := &fakeSource{elements: []ebml.Element{
		ebmlHead(), segment(),
		{Kind: ebml.KindInfo, Raw: []byte{0x15, 0x49, 0xA9, 0x66, 0x80}},
		{Kind: ebml.KindVoid, Raw: []byte{0xEC, 0x80}},
		{Kind: ebml.KindUnknown},
		cluster(),
		{Kind: ebml.KindInfo, Raw: []byte{0x15, 0x49, 0xA9, 0x66, 0x80}},
		timecode(0),
		simpleBlock(true, 0),
	}}
	c := NewChunker(src)
	chunks := drain(t, c)
	require.Len(t, chunks, 3)
}

// End tracks each block's timecode relative to the cluster's Start, not
// relative to the previous End: a later block with a smaller
// (but still positive) delta from Start still sets End, here moving it
// back from 100 to 20. This
// matches original_source/src/chunk.rs's observe_simpleblock_timecode.
func TestChunker_BlockTimecodeTrackedAgainstStart(t *testing.T) {
	src := &fakeSource{elements: []ebml.Element{
		ebmlHead(), segment(),
		cluster(), timecode(0),
		simpleBlock(true, 100), simpleBlock(false, 20),
	}}
	c := NewChunker(src)
	chunks := drain(t, c)
	head := chunks[1].(ClusterHeadChunk)
	assert.Equal(t, uint64(20), head.End)
}

// A block with a negative (or zero) delta from Start never moves End.
func TestChunker_NonPositiveDeltaDoesNotMoveEnd(t *testing.T) {
	src := &fakeSource{elements: []ebml.Element{
		ebmlHead(), segment(),
		cluster(), timecode(100),
		simpleBlock(true, 0), simpleBlock(false, -5),
	}}
	c := NewChunker(src)
	chunks := drain(t, c)
	head := chunks[1].(ClusterHeadChunk)
	assert.Equal(t, uint64(100), head.Start)
	assert.Equal(t, uint64(100), head.End)
}
