// Package codec builds, signs and validates protocol events. Everything the
// engine sends goes through a constructor here; everything it receives goes
// through Validate before any subscriber sees it.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"chat-engine/pkg/crypto"

	"github.com/nbd-wtf/go-nostr"
)

// Event kinds the engine speaks.
const (
	KindEncryptedDM = 4  // NIP-04 encrypted direct message
	KindRoomCreate  = 40 // NIP-28 channel creation
	KindRoomMessage = 42 // NIP-28 channel message
)

// ErrInvalidEvent marks an inbound event that failed id or signature
// validation. Callers drop the event; the error never reaches subscribers.
var ErrInvalidEvent = errors.New("invalid event")

// RoomMeta is the metadata content of a room creation event.
type RoomMeta struct {
	Name    string `json:"name,omitempty"`
	About   string `json:"about,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// NewDM builds a signed kind-4 event whose content is encrypted to the
// recipient's public key.
func NewDM(senderSKHex, recipientPKHex, text string) (*nostr.Event, error) {
	ciphertext, err := crypto.EncryptDM(senderSKHex, recipientPKHex, text)
	if err != nil {
		return nil, err
	}

	event := &nostr.Event{
		CreatedAt: nostr.Now(),
		Kind:      KindEncryptedDM,
		Tags:      nostr.Tags{{"p", recipientPKHex}},
		Content:   ciphertext,
	}
	if err := event.Sign(senderSKHex); err != nil {
		return nil, fmt.Errorf("failed to sign DM: %w", err)
	}
	return event, nil
}

// DecryptDM recovers the plaintext of a kind-4 event addressed to the holder
// of skHex. The counterparty key is the event author.
func DecryptDM(skHex string, event *nostr.Event) (string, error) {
	if event.Kind != KindEncryptedDM {
		return "", fmt.Errorf("event kind %d is not an encrypted DM", event.Kind)
	}
	return crypto.DecryptDM(skHex, event.PubKey, event.Content)
}

// NewRoom builds a signed kind-40 room creation event. The room id is the
// event id.
func NewRoom(skHex string, meta RoomMeta) (*nostr.Event, error) {
	content, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode room metadata: %w", err)
	}

	event := &nostr.Event{
		CreatedAt: nostr.Now(),
		Kind:      KindRoomCreate,
		Tags:      nostr.Tags{},
		Content:   string(content),
	}
	if err := event.Sign(skHex); err != nil {
		return nil, fmt.Errorf("failed to sign room creation: %w", err)
	}
	return event, nil
}

// NewRoomMessage builds a signed kind-42 message into the given room.
func NewRoomMessage(skHex, roomID, text string) (*nostr.Event, error) {
	if roomID == "" {
		return nil, errors.New("room id is required")
	}

	event := &nostr.Event{
		CreatedAt: nostr.Now(),
		Kind:      KindRoomMessage,
		Tags:      nostr.Tags{{"e", roomID, "", "root"}},
		Content:   text,
	}
	if err := event.Sign(skHex); err != nil {
		return nil, fmt.Errorf("failed to sign room message: %w", err)
	}
	return event, nil
}

// Validate checks an inbound event's canonical id and schnorr signature.
// Returns ErrInvalidEvent (wrapped) on any mismatch.
func Validate(event *nostr.Event) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if event.GetID() != event.ID {
		return fmt.Errorf("%w: id does not match serialized form", ErrInvalidEvent)
	}
	ok, err := event.CheckSignature()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if !ok {
		return fmt.Errorf("%w: signature verification failed", ErrInvalidEvent)
	}
	return nil
}
