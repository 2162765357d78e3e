package stream

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
)

// countingHandler counts warn-and-above records, discarding output.
type countingHandler struct {
	count atomic.Int64
}

func (h *countingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn
}

func (h *countingHandler) Handle(_ context.Context, _ slog.Record) error {
	h.count.Add(1)
	return nil
}

func (h *countingHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *countingHandler) WithGroup(_ string) slog.Handler      { return h }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMaterialize(t *testing.T) {
	tests := []struct {
		name   string
		record string
		want   Event
		wantOK bool
	}{
		{
			name:   "token event",
			record: `data: {"type":"token","content":"hel"}`,
			want:   Event{Kind: EventToken, Content: "hel"},
			wantOK: true,
		},
		{
			name:   "token without space after colon",
			record: `data:{"type":"token","content":"lo"}`,
			want:   Event{Kind: EventToken, Content: "lo"},
			wantOK: true,
		},
		{
			name:   "done event with message id",
			record: `data: {"type":"done","message_id":"m1"}`,
			want:   Event{Kind: EventDone, MessageID: "m1"},
			wantOK: true,
		},
		{
			name:   "done event without message id",
			record: `data: {"type":"done"}`,
			want:   Event{Kind: EventDone},
			wantOK: true,
		},
		{
			name:   "error event",
			record: `data: {"type":"error","message":"backend unavailable"}`,
			want:   Event{Kind: EventError, Message: "backend unavailable"},
			wantOK: true,
		},
		{
			name:   "done sentinel consumed silently",
			record: "data: [DONE]",
			wantOK: false,
		},
		{
			name:   "comment line ignored",
			record: ": keepalive",
			wantOK: false,
		},
		{
			name:   "non-data field ignored",
			record: "event: message\nid: 42",
			wantOK: false,
		},
		{
			name:   "empty payload ignored",
			record: "data: ",
			wantOK: false,
		},
		{
			name:   "data line found after other fields",
			record: "event: message\ndata: {\"type\":\"token\",\"content\":\"x\"}",
			want:   Event{Kind: EventToken, Content: "x"},
			wantOK: true,
		},
	}

	m := &materializer{logger: discardLogger()}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.materialize(tt.record)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.Kind != tt.want.Kind || got.Content != tt.want.Content ||
				got.MessageID != tt.want.MessageID || got.Message != tt.want.Message {
				t.Errorf("event = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMaterializeSources(t *testing.T) {
	m := &materializer{logger: discardLogger()}

	record := `data: {"type":"sources","sources":[{"title":"Doc A","url":"https://a.example","extra":"kept"},{"title":"Doc B"}]}`
	got, ok := m.materialize(record)
	if !ok {
		t.Fatal("expected sources event")
	}
	if got.Kind != EventSources {
		t.Fatalf("kind = %v, want sources", got.Kind)
	}
	if len(got.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(got.Sources))
	}
	if got.Sources[0].Title != "Doc A" || got.Sources[0].URL != "https://a.example" {
		t.Errorf("first source = %+v", got.Sources[0])
	}
	// The full descriptor is retained verbatim, including unknown fields.
	if len(got.Sources[0].Raw) == 0 {
		t.Error("raw payload not retained")
	}
}

func TestMaterializeMalformedLogsAndSkips(t *testing.T) {
	h := &countingHandler{}
	m := &materializer{logger: slog.New(h)}

	tests := []struct {
		name   string
		record string
	}{
		{"not json", "data: {not json at all"},
		{"unknown type", `data: {"type":"telemetry","content":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := h.count.Load()
			if _, ok := m.materialize(tt.record); ok {
				t.Fatal("malformed record produced an event")
			}
			if h.count.Load() != before+1 {
				t.Error("expected one diagnostic for the dropped record")
			}
		})
	}
}
