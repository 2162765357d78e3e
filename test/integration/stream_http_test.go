//go:build integration
// +build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/network/netpoll"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/protocol/sse"

	"github.com/lvyanru/chatctl/internal/stream"
)

const (
	testHost  = "127.0.0.1"
	testPort  = 18081
	testToken = "itest-token"
)

// startTestServer runs a Hertz server that replays a scripted event stream
// over SSE, the same wire format the production backend emits.
func startTestServer(t *testing.T) {
	t.Helper()

	h := server.New(
		server.WithHostPorts(fmt.Sprintf("%s:%d", testHost, testPort)),
		server.WithTransport(netpoll.NewTransporter),
	)

	v1 := h.Group("/api/v1")
	v1.POST("/chat/stream", func(ctx context.Context, c *app.RequestContext) {
		auth := string(c.GetHeader("Authorization"))
		if auth != "Bearer "+testToken {
			c.SetStatusCode(consts.StatusUnauthorized)
			c.SetBodyString("invalid token")
			return
		}

		c.SetStatusCode(consts.StatusOK)
		writer := sse.NewWriter(c)
		defer writer.Close()

		frames := []string{
			`{"type":"token","content":"The answer "}`,
			`{"type":"token","content":"is 日本語-safe."}`,
			`{"type":"sources","sources":[{"title":"Runbook","url":"https://docs.example/runbook"}]}`,
			`{"type":"done","message_id":"m-itest"}`,
		}
		for _, frame := range frames {
			if err := writer.WriteEvent("", "", []byte(frame)); err != nil {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		_ = writer.WriteEvent("", "", []byte("[DONE]"))
	})

	go func() {
		if err := h.Run(); err != nil {
			t.Logf("test server stopped: %v", err)
		}
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})

	// Wait for the listener to come up
	time.Sleep(2 * time.Second)
}

func newTestStreamTransport(t *testing.T) *stream.Transport {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	tr, err := stream.NewTransport(
		fmt.Sprintf("http://%s:%d/api/v1/chat/stream", testHost, testPort),
		logger,
		stream.WithDialTimeout(5*time.Second),
		stream.WithReadTimeout(10*time.Second),
	)
	if err != nil {
		t.Fatalf("failed to create transport: %v", err)
	}
	return tr
}

func TestStreamHTTP_SSE(t *testing.T) {
	startTestServer(t)
	tr := newTestStreamTransport(t)

	session, err := tr.Open(context.Background(), stream.Request{
		Query:          "what is the answer?",
		ConversationID: "itest-conv",
	}, testToken)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer session.Close()

	var answer strings.Builder
	var sources []stream.Source
	var done *stream.Event

	for {
		ev, err := session.Recv(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("recv failed: %v", err)
		}
		switch ev.Kind {
		case stream.EventToken:
			answer.WriteString(ev.Content)
		case stream.EventSources:
			sources = append(sources, ev.Sources...)
		case stream.EventDone:
			done = &ev
		default:
			t.Fatalf("unexpected event: %+v", ev)
		}
	}

	if answer.String() != "The answer is 日本語-safe." {
		t.Errorf("answer = %q", answer.String())
	}
	if len(sources) != 1 || sources[0].Title != "Runbook" {
		t.Errorf("sources = %+v", sources)
	}
	if done == nil || done.MessageID != "m-itest" {
		t.Errorf("done = %+v", done)
	}
}

func TestStreamHTTP_Unauthorized(t *testing.T) {
	startTestServer(t)
	tr := newTestStreamTransport(t)

	_, err := tr.Open(context.Background(), stream.Request{Query: "hi"}, "wrong-token")
	var te *stream.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *stream.TransportError", err)
	}
	if te.Status != consts.StatusUnauthorized {
		t.Errorf("status = %d, want 401", te.Status)
	}
	if !strings.Contains(te.Body, "invalid token") {
		t.Errorf("body = %q", te.Body)
	}
}
