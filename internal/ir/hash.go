package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content hashes.
// The version suffix leaves room for algorithm migration.
const (
	DomainStatement = "criteria/statement/v1"
	DomainSpec      = "criteria/spec/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StatementFingerprint identifies an executed statement by its SQL text and
// arguments. Two executions with equal SQL and equal args share a
// fingerprint.
func StatementFingerprint(sql string, args IRArray) (string, error) {
	if args == nil {
		args = IRArray{}
	}
	canonical, err := MarshalCanonical(IRObject{
		"sql":  IRString(sql),
		"args": args,
	})
	if err != nil {
		return "", fmt.Errorf("StatementFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainStatement, canonical), nil
}

// SpecHash hashes a spec (SchemaSpec, TemplateSpec or a slice of them) via
// its JSON form, canonicalized.
func SpecHash(spec any) (string, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("SpecHash: failed to encode: %w", err)
	}
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return "", fmt.Errorf("SpecHash: %w", err)
	}
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("SpecHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSpec, canonical), nil
}

// MustStatementFingerprint is like StatementFingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustStatementFingerprint(sql string, args IRArray) string {
	fp, err := StatementFingerprint(sql, args)
	if err != nil {
		panic(err)
	}
	return fp
}
