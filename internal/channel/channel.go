// Package channel implements the named single-producer,
// many-listener fan-out point chunks are relayed through: one
// broadcaster transmits, any number of listeners receive, and a slow
// listener never blocks the broadcaster or its peers.
//
// Grounded on http-pub-sub/pubsub/pubsub.go's pubSub type: a single
// goroutine owns a set of listener channels and drives it with a
// select loop, using add/remove channels instead of a mutex so every
// mutation is serialized through that one goroutine. Adapted to carry
// chunk.Chunk instead of interface{}, and to distinguish "no more
// listeners will ever see this again" (lossy drop) from "broadcaster
// gone" (close every listener).
package channel

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/webmetro/relay/internal/chunk"
)

// listenerBufferSize bounds how far a listener may lag the
// broadcaster before it starts losing chunks. A lost chunk is not
// fatal: the listener's starting-point filter resynchronizes at the
// next keyframe cluster.
const listenerBufferSize = 32

// Channel is a named fan-out point. The zero value is not usable; use
// New.
type Channel struct {
	addListener  chan chan chunk.Chunk
	remListener  chan chan chunk.Chunk
	src          chan chunk.Chunk
	done         chan struct{}
	closeOnce    sync.Once
	broadcasting atomic.Bool
}

// New starts a Channel's fan-out goroutine and returns it running.
func New() *Channel {
	c := &Channel{
		addListener: make(chan chan chunk.Chunk),
		remListener: make(chan chan chunk.Chunk),
		src:         make(chan chunk.Chunk),
		done:        make(chan struct{}),
	}
	go run(c.addListener, c.remListener, c.src, c.done)
	return c
}

// run is the fan-out loop. It takes the Channel's internal channels rather
// than the Channel itself, so a running loop does not keep an otherwise
// unreachable Channel alive.
func run(addListener, remListener chan chan chunk.Chunk, src chan chunk.Chunk, done chan struct{}) {
	listeners := make(map[chan chunk.Chunk]struct{})
	defer func() {
		for l := range listeners {
			close(l)
		}
	}()

	for {
		select {
		case l := <-addListener:
			listeners[l] = struct{}{}

		case l := <-remListener:
			if _, ok := listeners[l]; ok {
				delete(listeners, l)
				close(l)
			}

		case ch := <-src:
			for l := range listeners {
				select {
				case l <- ch:
				default:
					// Listener too slow for this chunk; drop it for
					// them only. They resynchronize at the next
					// keyframe cluster.
				}
			}

		case <-done:
			return
		}
	}
}

// Transmit pushes ch to every current listener. It never blocks on any
// individual listener, and returns immediately once the channel has
// been closed.
func (c *Channel) Transmit(ch chunk.Chunk) {
	select {
	case c.src <- ch:
	case <-c.done:
	}
}

// Close ends the channel's producer side. Every listener's Next
// returns io.EOF once it has drained whatever was already buffered for
// it.
func (c *Channel) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ClaimBroadcaster reports whether the caller is now the channel's sole
// broadcaster. A second caller gets false until the first releases.
func (c *Channel) ClaimBroadcaster() bool {
	return c.broadcasting.CompareAndSwap(false, true)
}

// ReleaseBroadcaster frees a held claim, so a future connection may
// become this channel's broadcaster.
func (c *Channel) ReleaseBroadcaster() {
	c.broadcasting.Store(false)
}

// Listener is one subscriber's view of a Channel.
type Listener struct {
	ch      chan chunk.Chunk
	channel *Channel
}

// Subscribe registers a new listener. The listener sees only chunks
// transmitted from this point on.
func (c *Channel) Subscribe() *Listener {
	ch := make(chan chunk.Chunk, listenerBufferSize)
	l := &Listener{ch: ch, channel: c}
	select {
	case c.addListener <- ch:
	case <-c.done:
		close(ch)
	}
	return l
}

// Unsubscribe removes the listener. Safe to call more than once.
func (l *Listener) Unsubscribe() {
	select {
	case l.channel.remListener <- l.ch:
	case <-l.channel.done:
	}
}

// Next blocks until a chunk arrives or the channel ends, returning
// io.EOF in the latter case.
func (l *Listener) Next() (chunk.Chunk, error) {
	ch, ok := <-l.ch
	if !ok {
		return nil, io.EOF
	}
	return ch, nil
}
