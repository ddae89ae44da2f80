package testutil

import "chat-engine/pkg/crypto"

// Deterministic secp256k1 private keys for tests. Never use outside tests.
const (
	AliceSKHex = "4c0883a69102937d6231471b5dbb6204fe512961708279f5d0a42b2e25bba1fa"
	BobSKHex   = "6f2dd2a7804705d2d536bee92221051865a639efa23f5ca7c810e77048253a79"
)

// MustKeyPair derives a KeyPair from a known-good secret key, panicking on
// failure. Only for tests with the constants above.
func MustKeyPair(skHex string) crypto.KeyPair {
	kp, err := crypto.DeriveKeyPair(skHex)
	if err != nil {
		panic(err)
	}
	return *kp
}
