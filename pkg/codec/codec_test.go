package codec

import (
	"encoding/json"
	"errors"
	"testing"

	"chat-engine/pkg/testutil"
)

func TestNewDMRoundtrip(t *testing.T) {
	alice := testutil.MustKeyPair(testutil.AliceSKHex)
	bob := testutil.MustKeyPair(testutil.BobSKHex)

	event, err := NewDM(alice.PrivateKeyHex, bob.PublicKeyHex, "hello bob")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if event.Kind != KindEncryptedDM {
		t.Errorf("expected kind %d, got %d", KindEncryptedDM, event.Kind)
	}
	if event.PubKey != alice.PublicKeyHex {
		t.Errorf("expected author %s, got %s", alice.PublicKeyHex, event.PubKey)
	}
	if event.Content == "hello bob" {
		t.Error("content must not be plaintext")
	}
	if tag := event.Tags.GetFirst([]string{"p"}); tag == nil || (*tag)[1] != bob.PublicKeyHex {
		t.Errorf("expected p tag for recipient, got %v", event.Tags)
	}
	if err := Validate(event); err != nil {
		t.Fatalf("built DM must validate, got %v", err)
	}

	// Recipient decrypts with their own key
	plaintext, err := DecryptDM(bob.PrivateKeyHex, event)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if plaintext != "hello bob" {
		t.Errorf("expected 'hello bob', got %q", plaintext)
	}
}

func TestDecryptDMWrongKind(t *testing.T) {
	alice := testutil.MustKeyPair(testutil.AliceSKHex)

	event, err := NewRoomMessage(alice.PrivateKeyHex, "roomid", "hi")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := DecryptDM(alice.PrivateKeyHex, event); err == nil {
		t.Fatal("expected error decrypting non-DM kind")
	}
}

func TestNewRoom(t *testing.T) {
	alice := testutil.MustKeyPair(testutil.AliceSKHex)

	meta := RoomMeta{Name: "engineering", About: "shop talk"}
	event, err := NewRoom(alice.PrivateKeyHex, meta)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if event.Kind != KindRoomCreate {
		t.Errorf("expected kind %d, got %d", KindRoomCreate, event.Kind)
	}
	if event.ID == "" {
		t.Error("room creation event must carry its id")
	}
	if err := Validate(event); err != nil {
		t.Fatalf("built room must validate, got %v", err)
	}

	var decoded RoomMeta
	if err := json.Unmarshal([]byte(event.Content), &decoded); err != nil {
		t.Fatalf("content is not room metadata: %v", err)
	}
	if decoded.Name != "engineering" || decoded.About != "shop talk" {
		t.Errorf("metadata did not roundtrip: %+v", decoded)
	}
}

func TestNewRoomMessage(t *testing.T) {
	alice := testutil.MustKeyPair(testutil.AliceSKHex)

	room, err := NewRoom(alice.PrivateKeyHex, RoomMeta{Name: "general"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	event, err := NewRoomMessage(alice.PrivateKeyHex, room.ID, "first post")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if event.Kind != KindRoomMessage {
		t.Errorf("expected kind %d, got %d", KindRoomMessage, event.Kind)
	}
	tag := event.Tags.GetFirst([]string{"e"})
	if tag == nil {
		t.Fatal("expected e tag referencing the room")
	}
	if (*tag)[1] != room.ID {
		t.Errorf("expected room id %s, got %s", room.ID, (*tag)[1])
	}
	if err := Validate(event); err != nil {
		t.Fatalf("built room message must validate, got %v", err)
	}
}

func TestNewRoomMessageRequiresRoom(t *testing.T) {
	alice := testutil.MustKeyPair(testutil.AliceSKHex)

	if _, err := NewRoomMessage(alice.PrivateKeyHex, "", "orphan"); err == nil {
		t.Fatal("expected error for empty room id")
	}
}

func TestValidate(t *testing.T) {
	alice := testutil.MustKeyPair(testutil.AliceSKHex)

	t.Run("nil event", func(t *testing.T) {
		if err := Validate(nil); !errors.Is(err, ErrInvalidEvent) {
			t.Errorf("expected ErrInvalidEvent, got %v", err)
		}
	})

	t.Run("tampered content", func(t *testing.T) {
		event, err := NewRoomMessage(alice.PrivateKeyHex, "roomid", "original")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		event.Content = "tampered"
		if err := Validate(event); !errors.Is(err, ErrInvalidEvent) {
			t.Errorf("expected ErrInvalidEvent, got %v", err)
		}
	})

	t.Run("forged id", func(t *testing.T) {
		event, err := NewRoomMessage(alice.PrivateKeyHex, "roomid", "original")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		event.Content = "tampered"
		event.ID = event.GetID() // recomputed id, signature now stale
		if err := Validate(event); !errors.Is(err, ErrInvalidEvent) {
			t.Errorf("expected ErrInvalidEvent, got %v", err)
		}
	})
}
