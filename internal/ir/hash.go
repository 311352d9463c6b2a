package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainKnowledgeBase = "tactline/kb/v1"
	DomainTactResult    = "tactline/tact-result/v1"
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

// KBHash computes the content hash of a knowledge base.
// Two knowledge bases with the same definitions in the same order hash
// identically regardless of where they were loaded from.
func KBHash(kb *KnowledgeBase) (string, error) {
	canonical, err := MarshalCanonical(kb)
	if err != nil {
		return "", fmt.Errorf("KBHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainKnowledgeBase, canonical), nil
}

// TactResultHash computes the content hash of a tact result.
// Replay compares these hashes to detect non-deterministic evaluation.
func TactResultHash(res *TactResult) (string, error) {
	canonical, err := MarshalCanonical(res)
	if err != nil {
		return "", fmt.Errorf("TactResultHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTactResult, canonical), nil
}

// MustKBHash is like KBHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustKBHash(kb *KnowledgeBase) string {
	h, err := KBHash(kb)
	if err != nil {
		panic(err)
	}
	return h
}
