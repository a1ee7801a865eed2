package script

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainScript = "vnengine/script/v1"
	DomainState  = "vnengine/state/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ScriptID computes the content-addressed identity of a script.
// Two structurally equal scripts always share an ID, regardless of the
// key order or whitespace of the source they were parsed from.
func ScriptID(s *Script) (string, error) {
	canonical, err := CanonicalOf(s)
	if err != nil {
		return "", fmt.Errorf("ScriptID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainScript, canonical), nil
}

// StateHash hashes any JSON-encodable state snapshot in the state domain.
func StateHash(v any) (string, error) {
	canonical, err := CanonicalOf(v)
	if err != nil {
		return "", fmt.Errorf("StateHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// MustScriptID is like ScriptID but panics on error.
// Use only in tests or when the script is known to be valid.
func MustScriptID(s *Script) string {
	id, err := ScriptID(s)
	if err != nil {
		panic(err)
	}
	return id
}
