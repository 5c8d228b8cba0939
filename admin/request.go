package admin

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// ErrBadSignature is returned when the signature does not match the request
// and address.
var ErrBadSignature = errors.New("bad signature")

// Request is an admin RPC call signed by an Ethereum address.
type Request struct {
	Method  string
	Address string // Hex-encoded, such as 0x961Aa96FebeE5465149a0787B03bFa14D8e9033F
	Nonce   int64
	Args    []interface{}
}

// payload is the signed form of the request: the method name followed by the
// JSON array of address, nonce and args, such as admin_removeNode["0x96..",42,"eth","1a2b3c4d"]
func (r Request) payload() ([]byte, error) {
	params := make([]interface{}, 0, 2+len(r.Args))
	params = append(params, r.Address, r.Nonce)
	params = append(params, r.Args...)
	out, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return append([]byte(r.Method), out...), nil
}

// hash wraps the payload as a personal message, which is what wallets sign:
//   keccak256("\x19Ethereum Signed Message:\n"${message length}${message})
func (r Request) hash() ([]byte, error) {
	msg, err := r.payload()
	if err != nil {
		return nil, err
	}
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))
	return crypto.Keccak256([]byte(prefix), msg), nil
}

// Sign returns the 0x-prefixed hex signature of the request.
func (r Request) Sign(privkey *ecdsa.PrivateKey) (string, error) {
	hashed, err := r.hash()
	if err != nil {
		return "", err
	}
	sig, err := crypto.Sign(hashed, privkey)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// SignedArgs returns the RPC params for the request: the signature, address
// and nonce followed by the args.
func (r Request) SignedArgs(privkey *ecdsa.PrivateKey) ([]interface{}, error) {
	sig, err := r.Sign(privkey)
	if err != nil {
		return nil, err
	}
	args := make([]interface{}, 0, 3+len(r.Args))
	args = append(args, sig, r.Address, r.Nonce)
	return append(args, r.Args...), nil
}

// Verify checks that sig was produced by the request's address.
func (r Request) Verify(sig string) error {
	sigbytes, err := hex.DecodeString(strings.TrimPrefix(sig, "0x"))
	if err != nil {
		return fmt.Errorf("failed to decode sig: %w", err)
	}
	if len(sigbytes) != crypto.SignatureLength {
		return fmt.Errorf("signature wrong length: %d", len(sigbytes))
	}
	// Wallets produce V as 27 or 28, recovery wants 0 or 1.
	if sigbytes[64] == 27 || sigbytes[64] == 28 {
		sigbytes[64] -= 27
	}

	hashed, err := r.hash()
	if err != nil {
		return fmt.Errorf("failed to hash request: %w", err)
	}
	pubkey, err := crypto.SigToPub(hashed, sigbytes)
	if err != nil {
		return ErrBadSignature
	}
	if !SameAddress(crypto.PubkeyToAddress(*pubkey).Hex(), r.Address) {
		return ErrBadSignature
	}
	return nil
}

// Address returns the hex address of a private key.
func Address(privkey *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(privkey.PublicKey).Hex()
}

// SameAddress compares two hex addresses, ignoring checksum casing.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
