// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

// Package cep extracts and compares Brazilian postal codes (CEP) found in
// free-form address strings.
package cep

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Flag is the outcome of comparing two postal codes.
type Flag int8

const (
	// Unknown means the codes could not be compared.
	Unknown Flag = -1
	// Mismatch means both codes are comparable and differ.
	Mismatch Flag = 0
	// Match means both codes are comparable and equal.
	Match Flag = 1
)

func (f Flag) String() string {
	switch f {
	case Match:
		return "1"
	case Mismatch:
		return "0"
	default:
		return ""
	}
}

// MarshalJSON renders Unknown as null.
func (f Flag) MarshalJSON() ([]byte, error) {
	if f == Unknown {
		return []byte("null"), nil
	}

	return []byte(f.String()), nil
}

// Normalizer turns a raw address into a canonical comparable form.
type Normalizer interface {
	Normalize(raw string) string
}

// Extractor finds a postal code inside a normalized address. It returns an
// empty string when none is present.
type Extractor interface {
	Extract(normalized string, acceptFiveDigit bool) string
}

// Comparator compares two extracted postal codes.
type Comparator interface {
	Compare(a, b string, strictFiveDigit bool) Flag
}

// FoldingNormalizer removes accents, lowercases, drops punctuation and
// collapses whitespace.
type FoldingNormalizer struct{}

func (FoldingNormalizer) Normalize(raw string) string {
	s, _, _ := transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		strings.ToLower(raw),
	)

	// punctuation is dropped rather than replaced so "01310-100" stays one token
	b := strings.Builder{}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

var (
	reEightDigits = regexp.MustCompile(`\b\d{8}\b`)
	reFiveDigits  = regexp.MustCompile(`\b\d{5}\b`)
)

// RegexpExtractor matches standalone 8-digit tokens, falling back to 5-digit
// tokens when allowed.
type RegexpExtractor struct{}

func (RegexpExtractor) Extract(normalized string, acceptFiveDigit bool) string {
	if m := reEightDigits.FindString(normalized); m != "" {
		return m
	}

	if acceptFiveDigit {
		return reFiveDigits.FindString(normalized)
	}

	return ""
}

// LengthComparator compares 8-digit codes always and 5-digit codes only in
// strict mode. Mixed lengths are never comparable.
type LengthComparator struct{}

func (LengthComparator) Compare(a, b string, strictFiveDigit bool) Flag {
	switch {
	case len(a) == 8 && len(b) == 8:
		if a == b {
			return Match
		}

		return Mismatch
	case strictFiveDigit && len(a) == 5 && len(b) == 5:
		if a == b {
			return Match
		}

		return Mismatch
	default:
		return Unknown
	}
}
