// Package httprelay wires the chunk pipeline (ebml decode, chunker,
// fixers, channel fan-out) to the HTTP surface: one broadcaster PUTs or
// POSTs an EBML byte stream to a named channel, any number of listeners
// GET it back out as a fresh, independently-playable WebM stream.
//
// Routing is github.com/go-chi/chi/v5 in place of a hand-rolled mux;
// the per-connection flow it dispatches to — decode, chunk, fix, fan
// out — generalizes a single global keeper into the named channel
// registry.
package httprelay

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/webmetro/relay/internal/bufpool"
	"github.com/webmetro/relay/internal/channel"
	"github.com/webmetro/relay/internal/chunk"
	"github.com/webmetro/relay/internal/config"
	"github.com/webmetro/relay/internal/ebml"
	werrors "github.com/webmetro/relay/internal/errors"
	"github.com/webmetro/relay/internal/fixers"
	"github.com/webmetro/relay/internal/logger"
)

// setMediaHeaders sets the headers common to every HEAD and GET response
// for a channel, matching original_source's media_response helper.
func setMediaHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("X-Accel-Buffering", "no")
}

// Server holds the shared state behind the /live/{name} resource.
type Server struct {
	registry *channel.Registry
	cfg      *config.Config
	log      zerolog.Logger
}

// New builds a Server. cfg supplies the soft buffer limit; its
// IngestTimeout is not used by the Server. registry is the process-wide
// channel table.
func New(cfg *config.Config, registry *channel.Registry) *Server {
	return &Server{
		registry: registry,
		cfg:      cfg,
		log:      logger.With("httprelay"),
	}
}

// Router builds the chi mux for this server's routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Head("/live/{name}", s.handleHead)
	r.Get("/live/{name}", s.handleGet)
	r.Post("/live/{name}", s.handleIngest)
	r.Put("/live/{name}", s.handleIngest)
	return r
}

func (s *Server) handleHead(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := s.registry.Lookup(name); !ok {
		http.NotFound(w, r)
		return
	}
	setMediaHeaders(w)
	w.Header().Set("Content-Type", "video/webm")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ch, ok := s.registry.Lookup(name)
	if !ok {
		http.NotFound(w, r)
		return
	}

	listenerID := uuid.NewString()
	log := s.log.With().Str("channel", name).Str("listener", listenerID).Logger()

	setMediaHeaders(w)
	w.Header().Set("Content-Type", "video/webm")
	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)

	listener := ch.Subscribe()
	defer listener.Unsubscribe()
	if canFlush {
		flusher.Flush()
	}
	log.Info().Msg("listener connected")
	defer log.Info().Msg("listener disconnected")

	egressFixer := fixers.NewChunkTimecodeFixer()
	startFilter := fixers.NewStartingPointFilter()

	var pendingHead chunk.Chunk
	scratch := bufpool.Get(4096)
	defer bufpool.Put(scratch)

	for {
		c, err := listener.Next()
		if err != nil {
			return
		}

		for _, out := range startFilter.Filter(egressFixer.Fix(c)) {
			if _, isHead := out.(chunk.ClusterHeadChunk); isHead {
				pendingHead = out
				continue
			}

			scratch = scratch[:0]
			if pendingHead != nil {
				scratch = append(scratch, pendingHead.Bytes()...)
				pendingHead = nil
			}
			scratch = append(scratch, out.Bytes()...)

			if _, err := w.Write(scratch); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
	}
}

// handleIngest serves both POST and PUT: the request body is decoded as
// an EBML stream, chunked, timecode-fixed, and fanned out to name's
// channel until the upload ends or fails. Only one broadcaster may hold
// a channel's claim at a time.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ch := s.registry.GetOrCreate(name)

	if !ch.ClaimBroadcaster() {
		http.Error(w, "channel already has a broadcaster", http.StatusConflict)
		return
	}
	defer func() {
		ch.Close()
		ch.ReleaseBroadcaster()
		s.registry.Evict(name, ch)
	}()

	log := s.log.With().Str("channel", name).Logger()
	log.Info().Msg("broadcaster connected")
	start := time.Now()

	source := ebml.NewDecoder(r.Body).WithSoftLimit(s.cfg.SoftLimit)
	chunker := chunk.NewChunker(source).WithSoftLimit(s.cfg.SoftLimit)
	ingestFixer := fixers.NewChunkTimecodeFixer()

	w.WriteHeader(http.StatusOK)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	for {
		c, err := chunker.Next()
		if err != nil {
			if err != io.EOF {
				log.Warn().
					Err(err).
					Bool("parse_error", werrors.IsParseError(err)).
					Bool("resources_exceeded", werrors.IsResourcesExceeded(err)).
					Msg("upload terminated by error")
			}
			break
		}
		ch.Transmit(ingestFixer.Fix(c))
	}

	log.Info().Dur("duration", time.Since(start)).Msg("broadcaster disconnected")
}
