package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed symbol identity.
// Version suffix enables future algorithm migration.
const (
	DomainRoutine = "cci/routine/v1"
	DomainType    = "cci/type/v1"
)

// RoutineKey is the content-addressed identity of a routine reference.
// Equal references produce equal keys; an instantiation keys differently
// from its unspecialized base form.
type RoutineKey string

// TypeKey is the content-addressed identity of a type reference.
type TypeKey string

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// KeyOf computes the routine reference's content-addressed key.
func (rr RoutineRef) KeyOf() RoutineKey {
	var b strings.Builder
	writeCanonicalRoutine(&b, rr)
	return RoutineKey(hashWithDomain(DomainRoutine, []byte(b.String())))
}

// KeyOf computes the type reference's content-addressed key.
func (tr TypeRef) KeyOf() TypeKey {
	var b strings.Builder
	writeCanonicalType(&b, tr)
	return TypeKey(hashWithDomain(DomainType, []byte(b.String())))
}

// writeCanonicalRoutine renders a routine reference canonically.
//
// Identifier text is NFC normalized before hashing so the same symbol
// spelled in different Unicode forms keys identically. Field order is
// fixed; separators are unambiguous (0x1f between fields, 0x1e between
// list elements).
func writeCanonicalRoutine(b *strings.Builder, rr RoutineRef) {
	writeCanonicalType(b, rr.DeclaringType)
	b.WriteByte(0x1f)
	b.WriteString(canonicalIdent(rr.Name))
	b.WriteByte(0x1f)
	for _, p := range rr.Params {
		writeCanonicalType(b, p)
		b.WriteByte(0x1e)
	}
	b.WriteByte(0x1f)
	for _, a := range rr.GenericArgs {
		writeCanonicalType(b, a)
		b.WriteByte(0x1e)
	}
}

func writeCanonicalType(b *strings.Builder, tr TypeRef) {
	b.WriteString(canonicalIdent(tr.Unit.Name))
	b.WriteByte(0x1f)
	b.WriteString(canonicalIdent(tr.Unit.Version))
	b.WriteByte(0x1f)
	b.WriteString(tr.Unit.GUID.String())
	b.WriteByte(0x1f)
	b.WriteString(canonicalIdent(tr.Name))
	b.WriteByte(0x1f)
	for _, a := range tr.GenericArgs {
		writeCanonicalType(b, a)
		b.WriteByte(0x1e)
	}
}

// canonicalIdent NFC-normalizes identifier text.
func canonicalIdent(s string) string {
	if norm.NFC.IsNormalString(s) {
		return s
	}
	return norm.NFC.String(s)
}
