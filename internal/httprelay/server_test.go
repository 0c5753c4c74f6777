package httprelay

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webmetro/relay/internal/channel"
	"github.com/webmetro/relay/internal/config"
)

func testServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	s := New(&config.Config{SoftLimit: 2 << 20}, channel.NewRegistry())
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts, s
}

// rawEbmlHead, rawSegment, and rawCluster are hand-encoded minimal
// wire bytes, matching the shapes internal/ebml's decoder recognizes.
var (
	rawEbmlHead = []byte{0x1A, 0x45, 0xDF, 0xA3, 0x80}
	rawSegment  = []byte{0x18, 0x53, 0x80, 0x67, 0xFF}
	rawCluster  = []byte{0x1F, 0x43, 0xB6, 0x75, 0xFF}
)

func rawTimecode(tc uint64) []byte {
	return []byte{0xE7, 0x81, byte(tc)}
}

func rawSimpleBlock(keyframe bool, tc int16) []byte {
	flags := byte(0)
	if keyframe {
		flags = 0x80
	}
	return []byte{0xA3, 0x85, 0x81, byte(tc >> 8), byte(tc), flags, 0x00}
}

func oneClusterStream() []byte {
	var buf bytes.Buffer
	buf.Write(rawEbmlHead)
	buf.Write(rawSegment)
	buf.Write(rawCluster)
	buf.Write(rawTimecode(0))
	buf.Write(rawSimpleBlock(true, 0))
	return buf.Bytes()
}

func TestServer_HeadMissingChannelReturns404(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Head(ts.URL + "/live/nobody")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_HeadReportsLiveChannel(t *testing.T) {
	ts, _ := testServer(t)

	pr, pw := io.Pipe()
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/live/show", pr)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
		}
		close(done)
	}()
	defer func() {
		pw.Close()
		<-done
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Head(ts.URL + "/live/show")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK &&
			resp.Header.Get("X-Accel-Buffering") == "no" &&
			resp.Header.Get("Cache-Control") == "no-cache, no-store"
	}, time.Second, 10*time.Millisecond)
}

func TestServer_GetStreamsBroadcastChunks(t *testing.T) {
	ts, _ := testServer(t)

	pr, pw := io.Pipe()
	putReq, err := http.NewRequest(http.MethodPut, ts.URL+"/live/show", pr)
	require.NoError(t, err)

	putDone := make(chan struct{})
	go func() {
		resp, err := http.DefaultClient.Do(putReq)
		if err == nil {
			resp.Body.Close()
		}
		close(putDone)
	}()

	// Wait for the channel to exist before subscribing.
	require.Eventually(t, func() bool {
		resp, err := http.Head(ts.URL + "/live/show")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)

	getResp, err := http.Get(ts.URL + "/live/show")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, "video/webm", getResp.Header.Get("Content-Type"))

	stream := oneClusterStream()
	_, err = pw.Write(stream)
	require.NoError(t, err)
	pw.Close() // ends the upload, flushing the one open cluster
	<-putDone

	r := bufio.NewReader(getResp.Body)
	got := make([]byte, len(stream))
	_, err = io.ReadFull(r, got)
	require.NoError(t, err)
	assert.Equal(t, stream, got, "re-encoded output must match the canonical input byte for byte")

	_, err = r.ReadByte()
	assert.Equal(t, io.EOF, err, "GET body must end once the broadcaster's channel closes")
}

func TestServer_SecondBroadcasterRejectedWhileFirstActive(t *testing.T) {
	ts, _ := testServer(t)

	pr, pw := io.Pipe()
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/live/taken", pr)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
		}
		close(done)
	}()
	defer func() {
		pw.Close()
		<-done
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Head(ts.URL + "/live/taken")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)

	resp2, err := http.Post(ts.URL+"/live/taken", "application/octet-stream", bytes.NewReader(nil))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusConflict, resp2.StatusCode)
}
