// Package stream decodes a live chat response body into discrete typed
// events as it arrives. The pipeline is strictly one-directional: the
// transport yields raw chunks, the frame decoder splits them into records
// on the "\n\n" delimiter, and the materializer classifies each record into
// a token, sources, done or error event. The caller controls pacing by
// pulling one event at a time.
package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/cloudwego/hertz/pkg/protocol"
)

const readBufferSize = 4096

// Stream is a single-use chat response session serving exactly one
// consumer. It is not safe for concurrent use: chunks must be applied to
// the decode buffer strictly sequentially. Once a terminal event has been
// delivered the session is exhausted; a retry needs a fresh Open.
type Stream struct {
	req  *protocol.Request
	resp *protocol.Response
	body io.Reader

	dec decoder
	mat materializer

	pending []Event
	eof     bool
	done    bool

	readBuf []byte
}

func newStream(req *protocol.Request, resp *protocol.Response, body io.Reader, logger *slog.Logger) *Stream {
	return &Stream{
		req:     req,
		resp:    resp,
		body:    body,
		mat:     materializer{logger: logger},
		readBuf: make([]byte, readBufferSize),
	}
}

// Recv returns the next event, blocking only while awaiting network data.
// After a terminal event (Done, Error or Truncated) has been returned,
// every later call returns io.EOF. Transport failures mid-stream surface
// as *TransportError.
func (s *Stream) Recv(ctx context.Context) (Event, error) {
	if s.done {
		return Event{}, io.EOF
	}

	for {
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			if ev.Terminal() {
				s.finish()
			}
			return ev, nil
		}

		if s.eof {
			// Connection closed without done or error. Surface the
			// ambiguity as a distinct terminal state instead of guessing.
			s.finish()
			return Event{Kind: EventTruncated}, nil
		}

		if err := ctx.Err(); err != nil {
			s.finish()
			return Event{}, &TransportError{
				Timeout: errors.Is(err, context.DeadlineExceeded),
				Cause:   err,
			}
		}

		n, err := s.body.Read(s.readBuf)
		if n > 0 {
			for _, record := range s.dec.feed(s.readBuf[:n]) {
				if ev, ok := s.mat.materialize(record); ok {
					s.pending = append(s.pending, ev)
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.eof = true
				continue
			}
			s.finish()
			return Event{}, &TransportError{Timeout: isTimeout(err), Cause: err}
		}
	}
}

// Close releases the network connection and decode buffer. Abandoning
// iteration without Close leaks the connection; calling it is mandatory
// unless a terminal event was received. Safe to call more than once.
func (s *Stream) Close() error {
	s.finish()
	return nil
}

func (s *Stream) finish() {
	s.done = true
	if s.req == nil {
		return
	}
	protocol.ReleaseRequest(s.req)
	protocol.ReleaseResponse(s.resp)
	s.req, s.resp, s.body = nil, nil, nil
	s.dec.buf = nil
	s.pending = nil
}
