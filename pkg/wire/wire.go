// Package wire parses and builds the relay wire protocol frames. Every
// inbound frame is converted to a tagged message variant at the network
// boundary; downstream code never touches raw JSON.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
)

// Message is implemented by every inbound frame variant.
type Message interface {
	Label() string
}

// EventMsg is an EVENT frame: a stored or live event for a subscription.
type EventMsg struct {
	SubID string
	Event *nostr.Event
}

func (EventMsg) Label() string { return "EVENT" }

// OKMsg is an OK frame: the relay's accept/reject signal for a published
// event id.
type OKMsg struct {
	EventID  string
	Accepted bool
	Reason   string
}

func (OKMsg) Label() string { return "OK" }

// EOSEMsg is an EOSE frame: end of stored events for a subscription.
type EOSEMsg struct {
	SubID string
}

func (EOSEMsg) Label() string { return "EOSE" }

// ClosedMsg is a CLOSED frame: the relay terminated a subscription.
type ClosedMsg struct {
	SubID  string
	Reason string
}

func (ClosedMsg) Label() string { return "CLOSED" }

// NoticeMsg is a NOTICE frame: a human-readable message from the relay.
type NoticeMsg struct {
	Text string
}

func (NoticeMsg) Label() string { return "NOTICE" }

// AuthMsg is an AUTH frame carrying a challenge. The engine does not
// authenticate to relays; the variant exists so the frame is recognized
// rather than counted as a protocol error.
type AuthMsg struct {
	Challenge string
}

func (AuthMsg) Label() string { return "AUTH" }

// Parse converts a raw frame into its tagged variant. Malformed frames and
// unknown labels return an error; the caller drops the frame.
func Parse(data []byte) (Message, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, fmt.Errorf("frame is not a JSON array: %w", err)
	}
	if len(parts) < 2 {
		return nil, fmt.Errorf("frame has %d elements, need at least 2", len(parts))
	}

	var label string
	if err := json.Unmarshal(parts[0], &label); err != nil {
		return nil, fmt.Errorf("frame label is not a string: %w", err)
	}

	switch label {
	case "EVENT":
		if len(parts) < 3 {
			return nil, fmt.Errorf("EVENT frame missing payload")
		}
		var subID string
		if err := json.Unmarshal(parts[1], &subID); err != nil {
			return nil, fmt.Errorf("EVENT frame subscription id: %w", err)
		}
		var event nostr.Event
		if err := json.Unmarshal(parts[2], &event); err != nil {
			return nil, fmt.Errorf("EVENT frame payload: %w", err)
		}
		return EventMsg{SubID: subID, Event: &event}, nil

	case "OK":
		if len(parts) < 3 {
			return nil, fmt.Errorf("OK frame missing accepted flag")
		}
		var msg OKMsg
		if err := json.Unmarshal(parts[1], &msg.EventID); err != nil {
			return nil, fmt.Errorf("OK frame event id: %w", err)
		}
		if err := json.Unmarshal(parts[2], &msg.Accepted); err != nil {
			return nil, fmt.Errorf("OK frame accepted flag: %w", err)
		}
		if len(parts) >= 4 {
			// Reason is optional and best-effort
			_ = json.Unmarshal(parts[3], &msg.Reason)
		}
		return msg, nil

	case "EOSE":
		var subID string
		if err := json.Unmarshal(parts[1], &subID); err != nil {
			return nil, fmt.Errorf("EOSE frame subscription id: %w", err)
		}
		return EOSEMsg{SubID: subID}, nil

	case "CLOSED":
		var msg ClosedMsg
		if err := json.Unmarshal(parts[1], &msg.SubID); err != nil {
			return nil, fmt.Errorf("CLOSED frame subscription id: %w", err)
		}
		if len(parts) >= 3 {
			_ = json.Unmarshal(parts[2], &msg.Reason)
		}
		return msg, nil

	case "NOTICE":
		var text string
		if err := json.Unmarshal(parts[1], &text); err != nil {
			return nil, fmt.Errorf("NOTICE frame text: %w", err)
		}
		return NoticeMsg{Text: text}, nil

	case "AUTH":
		var challenge string
		if err := json.Unmarshal(parts[1], &challenge); err != nil {
			return nil, fmt.Errorf("AUTH frame challenge: %w", err)
		}
		return AuthMsg{Challenge: challenge}, nil
	}

	return nil, fmt.Errorf("unknown frame label %q", label)
}

// ReqFrame builds a REQ frame opening a subscription with the given filters.
func ReqFrame(subID string, filters ...nostr.Filter) ([]byte, error) {
	parts := []interface{}{"REQ", subID}
	for _, f := range filters {
		parts = append(parts, f)
	}
	return json.Marshal(parts)
}

// EventFrame builds an EVENT frame publishing the given event.
func EventFrame(event *nostr.Event) ([]byte, error) {
	return json.Marshal([]interface{}{"EVENT", event})
}

// CloseFrame builds a CLOSE frame terminating a subscription.
func CloseFrame(subID string) ([]byte, error) {
	return json.Marshal([]interface{}{"CLOSE", subID})
}
