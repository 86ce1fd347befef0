package passkit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/hkdf"
)

// tokenInfo domain-separates the derivation from any other use of the secret.
const tokenInfo = "wallet-auth-token"

// AuthToken derives the per-serial authentication token from the server
// secret. Deterministic, so no per-pass token table exists: the token embedded
// in an issued pass can always be re-derived to authorize later registration
// and fetch calls for that serial.
func AuthToken(secret, serial string) string {
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(tokenInfo+":"+serial))
	out := make([]byte, 32)
	_, _ = io.ReadFull(r, out)
	return hex.EncodeToString(out)
}

// VerifyAuthToken compares a presented token against the derived one in
// constant time.
func VerifyAuthToken(secret, serial, presented string) bool {
	if presented == "" {
		return false
	}
	expected := AuthToken(secret, serial)
	return hmac.Equal([]byte(expected), []byte(presented))
}
