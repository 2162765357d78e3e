package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/network/standard"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const (
	defaultDialTimeout = 10 * time.Second
	defaultReadTimeout = 60 * time.Second
)

// doer is the slice of Hertz's client used by the transport. Tests install
// a stub here to observe, or forbid, network activity.
type doer interface {
	Do(ctx context.Context, req *protocol.Request, resp *protocol.Response) error
}

// Transport issues authenticated streaming chat requests. One Transport may
// open any number of independent stream sessions; it holds no per-session
// state beyond the shared connection pool.
type Transport struct {
	client doer
	url    string
	logger *slog.Logger
}

// Option configures a Transport.
type Option func(*options)

type options struct {
	dialTimeout time.Duration
	readTimeout time.Duration
}

// WithDialTimeout sets the connection establishment timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

// WithReadTimeout sets the timeout for each chunk wait on the open stream.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) { o.readTimeout = d }
}

// NewTransport creates a Transport posting to url. The logger is the
// diagnostic sink for malformed records; nil falls back to slog.Default().
func NewTransport(url string, logger *slog.Logger, opts ...Option) (*Transport, error) {
	o := options{
		dialTimeout: defaultDialTimeout,
		readTimeout: defaultReadTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.Default()
	}

	// netpoll does not handle streamed response bodies, so use the
	// standard library dialer.
	c, err := client.NewClient(
		client.WithDialTimeout(o.dialTimeout),
		client.WithClientReadTimeout(o.readTimeout),
		client.WithMaxIdleConnDuration(60*time.Second),
		client.WithResponseBodyStream(true),
		client.WithDialer(standard.NewDialer()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &Transport{
		client: c,
		url:    url,
		logger: logger,
	}, nil
}

// Open posts the request with the given bearer token and returns a Stream
// producing decoded events as the response arrives. Failures before the
// first byte are returned here; mid-stream failures surface from Recv.
// An empty token fails with ErrUnauthenticated before any network activity.
func (t *Transport) Open(ctx context.Context, r Request, token string) (*Stream, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	payload := struct {
		Request
		Stream bool `json:"stream"`
	}{Request: r, Stream: true}

	body, err := sonic.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()

	req.SetMethod(consts.MethodPost)
	req.SetRequestURI(t.url)
	req.Header.SetContentTypeBytes([]byte("application/json"))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/event-stream")
	req.SetBody(body)

	if err := t.client.Do(ctx, req, resp); err != nil {
		protocol.ReleaseRequest(req)
		protocol.ReleaseResponse(resp)
		return nil, &TransportError{Timeout: isTimeout(err), Cause: err}
	}

	if code := resp.StatusCode(); code < 200 || code >= 300 {
		respBody := string(resp.Body())
		protocol.ReleaseRequest(req)
		protocol.ReleaseResponse(resp)
		return nil, &TransportError{Status: code, Body: respBody}
	}

	bodyStream := resp.BodyStream()
	if bodyStream == nil {
		protocol.ReleaseRequest(req)
		protocol.ReleaseResponse(resp)
		return nil, &TransportError{Cause: errors.New("body stream is nil")}
	}

	return newStream(req, resp, bodyStream, t.logger), nil
}

// isTimeout reports whether err stems from a deadline or I/O timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
