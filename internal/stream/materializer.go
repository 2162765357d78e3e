package stream

import (
	"log/slog"
	"strings"

	"github.com/bytedance/sonic"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
)

// wireEvent is the JSON payload carried by one data record.
type wireEvent struct {
	Type      string   `json:"type"`
	Content   string   `json:"content,omitempty"`
	Sources   []Source `json:"sources,omitempty"`
	MessageID string   `json:"message_id,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// materializer classifies records into stream events. Unparseable records
// are dropped with a warning on the injected logger: one garbled frame must
// not terminate an otherwise healthy stream.
type materializer struct {
	logger *slog.Logger
}

// materialize decodes one record. ok is false when the record carries no
// event: non-data lines, empty payloads, the [DONE] sentinel, and malformed
// or unrecognized payloads.
func (m *materializer) materialize(record string) (Event, bool) {
	payload, ok := dataPayload(record)
	if !ok {
		return Event{}, false
	}
	if payload == doneSentinel {
		// Legacy sentinel. Termination is carried by the typed done/error
		// events, so this line is consumed silently.
		return Event{}, false
	}

	var we wireEvent
	if err := sonic.UnmarshalString(payload, &we); err != nil {
		m.logger.Warn("dropping malformed stream record",
			"error", err,
			"record_bytes", len(payload),
		)
		return Event{}, false
	}

	switch we.Type {
	case "token":
		return Event{Kind: EventToken, Content: we.Content}, true
	case "sources":
		return Event{Kind: EventSources, Sources: we.Sources}, true
	case "done":
		return Event{Kind: EventDone, MessageID: we.MessageID}, true
	case "error":
		return Event{Kind: EventError, Message: we.Message}, true
	default:
		m.logger.Warn("dropping stream record with unknown type", "type", we.Type)
		return Event{}, false
	}
}

// dataPayload extracts the payload of the first data line in a record.
// Other SSE fields (event:, id:, retry:) and comment lines are ignored.
// Both "data: x" and "data:x" forms are accepted.
func dataPayload(record string) (string, bool) {
	for _, line := range strings.Split(record, "\n") {
		line = strings.TrimRight(line, "\r")
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimPrefix(line, dataPrefix)
		payload = strings.TrimPrefix(payload, " ")
		if payload == "" {
			continue
		}
		return payload, true
	}
	return "", false
}
