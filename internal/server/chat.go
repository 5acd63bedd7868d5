package server

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"

	"telecalc/internal/chat"
	"telecalc/internal/logger"
	"telecalc/internal/proration"
	"telecalc/internal/streaming"
)

// handleChat streams a chat reply as server-sent events. Until the first
// event is written, failures are ordinary JSON errors.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if d := s.limiter.Allow(clientKey(r)); !d.Allowed {
		s.metrics.RateLimitHits.Inc()
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many chat requests, slow down"})
		return
	}
	if !s.chat.Available() {
		s.metrics.ChatStreams.WithLabelValues("unavailable").Inc()
		s.writeError(w, r, chat.ErrUnavailable)
		return
	}

	var req chat.Request
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var sse *streaming.Writer
	emit := func(e chat.Event) error {
		if sse == nil {
			var err error
			if sse, err = streaming.NewWriter(w); err != nil {
				return err
			}
		}
		if e.Type == chat.EventCalculation {
			s.metrics.Calculations.WithLabelValues("chat").Inc()
		}
		return sse.SendJSON(string(e.Type), e)
	}

	err := s.chat.Reply(r.Context(), req, emit)
	switch {
	case err == nil:
		s.metrics.ChatStreams.WithLabelValues("ok").Inc()
	case sse != nil:
		// Headers are gone; the client most likely disconnected.
		s.metrics.ChatStreams.WithLabelValues("aborted").Inc()
		log.Warn().Err(err).Msg("Chat stream aborted")
	case proration.IsValidationError(err):
		s.metrics.ChatStreams.WithLabelValues("invalid").Inc()
		s.writeError(w, r, err)
	case errors.Is(err, chat.ErrUnavailable):
		s.metrics.ChatStreams.WithLabelValues("unavailable").Inc()
		s.writeError(w, r, err)
	default:
		s.metrics.ChatStreams.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("Chat reply failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "the assistant is unavailable, try again later"})
	}
}

// clientKey is the rate limit key: the client IP without its port.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
