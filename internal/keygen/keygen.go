// Package keygen provides deterministic signing keys for tests.
package keygen

import (
	"crypto/ecdsa"
	"encoding/base64"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

var hardcodedKeys = []string{
	`Qz7wmX+MXfvY85IsJMnMFd8fOI4msOT24bp6Iw/NuPo=`,
	`OX9lnxz+fWNmEEBXCKfEmEsh5oGhCXXdHJBqilgZPNc=`,
	`pebDrvrc9iHxN8k7YJva6bvr6Mzimb9ZbFrGpVy/Wb0=`,
	`cl3X1He2rNZiXbsii3M9zxBTi9B7gB1Tqgk6u5rMytE=`,
}

// HardcodedKey returns the first hardcoded key.
func HardcodedKey(t testing.TB) *ecdsa.PrivateKey {
	return HardcodedKeyIdx(t, 0)
}

// HardcodedKeyIdx returns the hardcoded key at idx, so that tests can use a
// few distinct but stable identities.
func HardcodedKeyIdx(t testing.TB, idx int) *ecdsa.PrivateKey {
	t.Helper()
	if idx < 0 || idx >= len(hardcodedKeys) {
		t.Fatalf("keygen.HardcodedKeyIdx: no hardcoded key %d", idx)
	}
	data, err := base64.StdEncoding.DecodeString(hardcodedKeys[idx])
	if err != nil {
		t.Fatalf("keygen.HardcodedKeyIdx: %s", err)
	}
	privkey, err := crypto.ToECDSA(data)
	if err != nil {
		t.Fatalf("keygen.HardcodedKeyIdx: %s", err)
	}
	return privkey
}
