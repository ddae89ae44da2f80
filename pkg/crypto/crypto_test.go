package crypto

import (
	"strings"
	"testing"
)

// Deterministic test key; duplicated from testutil to avoid an import cycle.
const testSKHex = "4c0883a69102937d6231471b5dbb6204fe512961708279f5d0a42b2e25bba1fa"

func TestDeriveKeyPair(t *testing.T) {
	t.Run("from hex", func(t *testing.T) {
		kp, err := DeriveKeyPair(testSKHex)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if kp.PrivateKeyHex != testSKHex {
			t.Errorf("expected private key %s, got %s", testSKHex, kp.PrivateKeyHex)
		}
		if len(kp.PublicKeyHex) != 64 {
			t.Errorf("expected 64-char public key, got %d chars", len(kp.PublicKeyHex))
		}
		if !strings.HasPrefix(kp.PrivateKeyBech32, "nsec1") {
			t.Errorf("expected nsec encoding, got %s", kp.PrivateKeyBech32)
		}
		if !strings.HasPrefix(kp.PublicKeyBech32, "npub1") {
			t.Errorf("expected npub encoding, got %s", kp.PublicKeyBech32)
		}
	})

	t.Run("from nsec roundtrip", func(t *testing.T) {
		first, err := DeriveKeyPair(testSKHex)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		second, err := DeriveKeyPair(first.PrivateKeyBech32)
		if err != nil {
			t.Fatalf("expected no error deriving from nsec, got %v", err)
		}
		if second.PrivateKeyHex != first.PrivateKeyHex {
			t.Errorf("nsec roundtrip changed the private key")
		}
		if second.PublicKeyHex != first.PublicKeyHex {
			t.Errorf("nsec roundtrip changed the public key")
		}
	})

	t.Run("invalid inputs", func(t *testing.T) {
		cases := []string{
			"",
			"not-a-key",
			strings.Repeat("zz", 32), // 64 chars but not hex
			"npub1invalidprefix",
		}
		for _, input := range cases {
			if _, err := DeriveKeyPair(input); err == nil {
				t.Errorf("expected error for %q", input)
			}
		}
	})
}

func TestGenerateKeyPair(t *testing.T) {
	first, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if first.PrivateKeyHex == second.PrivateKeyHex {
		t.Error("two generated keys must differ")
	}
	if len(first.PrivateKeyHex) != 64 {
		t.Errorf("expected 64-char private key, got %d chars", len(first.PrivateKeyHex))
	}

	// A generated key must rederive to the same pair
	derived, err := DeriveKeyPair(first.PrivateKeyHex)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if derived.PublicKeyHex != first.PublicKeyHex {
		t.Error("rederived public key does not match")
	}
}

func TestEncryptDecryptDM(t *testing.T) {
	alice, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	bob, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	plaintext := "meet at the usual place"
	ciphertext, err := EncryptDM(alice.PrivateKeyHex, bob.PublicKeyHex, plaintext)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ciphertext == plaintext {
		t.Fatal("ciphertext must differ from plaintext")
	}

	// Bob decrypts with Alice as counterparty
	decrypted, err := DecryptDM(bob.PrivateKeyHex, alice.PublicKeyHex, ciphertext)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("expected %q, got %q", plaintext, decrypted)
	}

	// A third party cannot decrypt
	eve, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if decrypted, err := DecryptDM(eve.PrivateKeyHex, alice.PublicKeyHex, ciphertext); err == nil && decrypted == plaintext {
		t.Error("third party must not recover the plaintext")
	}
}
