package engine

import (
	"encoding/json"
	"testing"
	"time"

	"chat-engine/pkg/codec"
	"chat-engine/pkg/config"
	"chat-engine/pkg/pool"
	"chat-engine/pkg/publish"
	"chat-engine/pkg/testutil"

	"github.com/nbd-wtf/go-nostr"
)

func testConfig(skHex string, relayURLs ...string) *config.Config {
	return &config.Config{
		RelayURLs: relayURLs,
		SecretKey: skHex,
		KeyPair:   testutil.MustKeyPair(skHex),
		Ack: config.AckConfig{
			Threshold:        1,
			WaitSeconds:      9,
			RetryPlanSeconds: []int{3, 6},
			GraceSeconds:     5,
		},
		Network: config.NetworkConfig{
			InitialBackoffSeconds: 1,
			MaxBackoffSeconds:     2,
			DialTimeoutSeconds:    1,
		},
		Info: config.InfoConfig{TTLHours: 24, TimeoutSeconds: 5},
	}
}

func startEngine(t *testing.T, cfg *config.Config) (*Engine, *testutil.FakeDialer, *testutil.FakeClock) {
	t.Helper()
	dialer := &testutil.FakeDialer{}
	clock := testutil.NewFakeClock()
	eng := New(cfg, Options{Dialer: dialer, Clock: clock})
	eng.Start()
	t.Cleanup(eng.Close)

	waitFor(t, "all relays open", func() bool {
		open := 0
		for _, rec := range eng.Snapshot() {
			if rec.State == pool.StateOpen {
				open++
			}
		}
		return open == len(cfg.RelayURLs)
	})
	return eng, dialer, clock
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// reqSubID extracts the wire subscription id from the latest REQ frame the
// socket has seen.
func reqSubID(t *testing.T, sock *testutil.FakeSocket) string {
	t.Helper()
	frames := sock.Written()
	for i := len(frames) - 1; i >= 0; i-- {
		var parts []json.RawMessage
		if err := json.Unmarshal(frames[i], &parts); err != nil || len(parts) < 2 {
			continue
		}
		var label string
		json.Unmarshal(parts[0], &label)
		if label != "REQ" {
			continue
		}
		var subID string
		if err := json.Unmarshal(parts[1], &subID); err != nil {
			t.Fatalf("REQ frame carries no subscription id: %v", err)
		}
		return subID
	}
	t.Fatal("no REQ frame written to socket")
	return ""
}

func eventFrame(t *testing.T, subID string, event *nostr.Event) []byte {
	t.Helper()
	frame, err := json.Marshal([]interface{}{"EVENT", subID, event})
	if err != nil {
		t.Fatalf("failed to build EVENT frame: %v", err)
	}
	return frame
}

func okFrame(t *testing.T, eventID string, accepted bool) []byte {
	t.Helper()
	frame, err := json.Marshal([]interface{}{"OK", eventID, accepted, ""})
	if err != nil {
		t.Fatalf("failed to build OK frame: %v", err)
	}
	return frame
}

func TestSubscribeDeliversExactlyOnce(t *testing.T) {
	bob := testConfig(testutil.BobSKHex, "wss://a", "wss://b")
	eng, dialer, _ := startEngine(t, bob)

	delivered := make(chan *nostr.Event, 4)
	_, err := eng.Subscribe(nostr.Filter{Kinds: []int{codec.KindEncryptedDM}}, func(event *nostr.Event, relayURL string) {
		delivered <- event
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	sockA := dialer.SocketFor("wss://a")
	sockB := dialer.SocketFor("wss://b")
	waitFor(t, "REQ on both sockets", func() bool {
		return len(sockA.Written()) > 0 && len(sockB.Written()) > 0
	})

	// The same DM arrives from both relays
	alice := testutil.MustKeyPair(testutil.AliceSKHex)
	dm, err := codec.NewDM(alice.PrivateKeyHex, bob.KeyPair.PublicKeyHex, "hello bob")
	if err != nil {
		t.Fatalf("failed to build DM: %v", err)
	}
	sockA.Deliver(eventFrame(t, reqSubID(t, sockA), dm))
	sockB.Deliver(eventFrame(t, reqSubID(t, sockB), dm))

	select {
	case event := <-delivered:
		if event.ID != dm.ID {
			t.Errorf("expected event %s, got %s", dm.ID, event.ID)
		}
		plaintext, err := eng.DecryptDM(event)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if plaintext != "hello bob" {
			t.Errorf("expected 'hello bob', got %q", plaintext)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	// The copy from the second relay is deduplicated
	select {
	case event := <-delivered:
		t.Fatalf("expected no second delivery, got %s", event.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribeRejectsTamperedEvents(t *testing.T) {
	bob := testConfig(testutil.BobSKHex, "wss://a")
	eng, dialer, _ := startEngine(t, bob)

	delivered := make(chan *nostr.Event, 1)
	if _, err := eng.Subscribe(nostr.Filter{}, func(event *nostr.Event, relayURL string) {
		delivered <- event
	}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	sock := dialer.SocketFor("wss://a")
	waitFor(t, "REQ written", func() bool { return len(sock.Written()) > 0 })

	alice := testutil.MustKeyPair(testutil.AliceSKHex)
	event, err := codec.NewRoomMessage(alice.PrivateKeyHex, "roomid", "original")
	if err != nil {
		t.Fatalf("failed to build event: %v", err)
	}
	event.Content = "tampered"
	sock.Deliver(eventFrame(t, reqSubID(t, sock), event))

	select {
	case <-delivered:
		t.Fatal("tampered event must not be delivered")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSendDMAckedOnOK(t *testing.T) {
	alice := testConfig(testutil.AliceSKHex, "wss://a", "wss://b")
	eng, dialer, _ := startEngine(t, alice)

	bob := testutil.MustKeyPair(testutil.BobSKHex)
	event, acked, err := eng.SendDM(bob.PublicKeyHex, "hello bob")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// The frame reaches both open relays
	sockA := dialer.SocketFor("wss://a")
	sockB := dialer.SocketFor("wss://b")
	waitFor(t, "EVENT frames written", func() bool {
		return len(sockA.Written()) > 0 && len(sockB.Written()) > 0
	})

	// One relay accepting is enough at threshold 1
	sockA.Deliver(okFrame(t, event.ID, true))

	select {
	case ok := <-acked:
		if !ok {
			t.Fatal("expected publish acked")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for ack")
	}

	statuses, tracked := eng.PublishStatus(event.ID)
	if !tracked {
		t.Fatal("expected publish tracked in the grace window")
	}
	if statuses["wss://a"] != publish.StatusOK {
		t.Errorf("expected wss://a accepted, got %v", statuses["wss://a"])
	}
}

func TestPublishFailsWhenPlanExhausted(t *testing.T) {
	alice := testConfig(testutil.AliceSKHex, "wss://a")
	eng, _, clock := startEngine(t, alice)

	_, acked, err := eng.SendRoomMessage("roomid", "unacked")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// 9s wait + 3s and 6s retries + final 9s wait
	clock.Advance(27 * time.Second)

	select {
	case ok := <-acked:
		if ok {
			t.Fatal("expected publish to fail")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for failure")
	}
}

func TestCreateRoomReturnsRoomID(t *testing.T) {
	alice := testConfig(testutil.AliceSKHex, "wss://a")
	eng, dialer, _ := startEngine(t, alice)

	event, acked, err := eng.CreateRoom(codec.RoomMeta{Name: "general"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if event.ID == "" {
		t.Fatal("expected room id on the creation event")
	}

	sock := dialer.SocketFor("wss://a")
	sock.Deliver(okFrame(t, event.ID, true))

	select {
	case ok := <-acked:
		if !ok {
			t.Fatal("expected room creation acked")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for ack")
	}
}

func TestReconcileRemovesRelay(t *testing.T) {
	alice := testConfig(testutil.AliceSKHex, "wss://a", "wss://b")
	eng, _, _ := startEngine(t, alice)

	eng.Reconcile([]string{"wss://a"})
	waitFor(t, "one relay left", func() bool {
		return len(eng.Snapshot()) == 1
	})
	if eng.Snapshot()[0].URL != "wss://a" {
		t.Errorf("expected wss://a to survive, got %s", eng.Snapshot()[0].URL)
	}
}

func TestPublicKey(t *testing.T) {
	alice := testConfig(testutil.AliceSKHex, "wss://a")
	eng := New(alice, Options{Dialer: &testutil.FakeDialer{}})
	defer eng.Close()

	if eng.PublicKey() != alice.KeyPair.PublicKeyHex {
		t.Errorf("expected %s, got %s", alice.KeyPair.PublicKeyHex, eng.PublicKey())
	}
}
