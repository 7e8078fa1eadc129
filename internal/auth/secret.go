package auth

import "crypto/subtle"

// VerifyKey compares a caller-supplied key against the server-held secret in
// constant time. An empty configured secret never matches.
func VerifyKey(candidate, secret string) bool {
	if secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) == 1
}
