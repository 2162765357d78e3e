package stream

import (
	"encoding/json"

	"github.com/bytedance/sonic"
)

// EventKind identifies the variant of a stream event.
type EventKind int

const (
	// EventToken carries one incremental piece of generated text.
	EventToken EventKind = iota
	// EventSources carries citation metadata for the answer.
	EventSources
	// EventDone marks successful completion of the response.
	EventDone
	// EventError marks an application-level failure reported by the server.
	EventError
	// EventTruncated marks a connection that closed before any terminal
	// event arrived. Whether that counts as success is the caller's call.
	EventTruncated
)

// String returns the wire name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventToken:
		return "token"
	case EventSources:
		return "sources"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	case EventTruncated:
		return "truncated"
	default:
		return "unknown"
	}
}

// Source is one citation descriptor attached to a response. The common
// fields are decoded for convenience; Raw keeps the full payload untouched.
type Source struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and retains the raw payload.
func (s *Source) UnmarshalJSON(data []byte) error {
	type plain Source
	var p plain
	if err := sonic.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Source(p)
	s.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Event is one decoded unit of the chat stream. Exactly one variant is
// populated, selected by Kind. Events are immutable once constructed.
type Event struct {
	Kind EventKind

	Content   string   // EventToken
	Sources   []Source // EventSources
	MessageID string   // EventDone, may be empty
	Message   string   // EventError
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	switch e.Kind {
	case EventDone, EventError, EventTruncated:
		return true
	default:
		return false
	}
}

// Turn is one prior exchange in the conversation history.
type Turn struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

// Request is the immutable payload of one chat request. It is constructed
// once per request and never mutated by this package.
type Request struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
	History        []Turn `json:"history,omitempty"`
	Model          string `json:"model,omitempty"`
}
