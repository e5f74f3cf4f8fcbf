// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

package cep

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldingNormalizer(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Av. Paulista, 1578 - Bela Vista, São Paulo - SP, 01310-200", "av paulista 1578 bela vista sao paulo sp 01310200"},
		{"  RUA  DA CONSOLAÇÃO,   930 ", "rua da consolacao 930"},
		{"Praça Tiradentes; Ouro Preto/MG", "praca tiradentes ouro pretomg"},
		{"CEP 70.040-010", "cep 70040010"},
		{"", ""},
	}

	n := FoldingNormalizer{}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, n.Normalize(tc.input))
		})
	}
}

func TestRegexpExtractor(t *testing.T) {
	tests := []struct {
		name       string
		normalized string
		acceptFive bool
		expected   string
	}{
		{"eight digits", "av paulista 1578 sao paulo 01310200", false, "01310200"},
		{"eight preferred over five", "rua x 12345 sp 01310200", true, "01310200"},
		{"five rejected by default", "rua x 100 sao paulo 01310", false, ""},
		{"five accepted", "rua x 100 sao paulo 01310", true, "01310"},
		{"nine digits is not a cep", "fone 119876543210", true, ""},
		{"embedded in word", "lote01310200", false, ""},
		{"none", "rua sem numero", true, ""},
	}

	e := RegexpExtractor{}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, e.Extract(tc.normalized, tc.acceptFive))
		})
	}
}

func TestLengthComparator(t *testing.T) {
	tests := []struct {
		name   string
		a, b   string
		strict bool
		want   Flag
	}{
		{"eight equal", "01310200", "01310200", false, Match},
		{"eight different", "01310200", "01310100", false, Mismatch},
		{"eight equal strict", "01310200", "01310200", true, Match},
		{"five equal strict", "01310", "01310", true, Match},
		{"five different strict", "01310", "01311", true, Mismatch},
		{"five equal lenient", "01310", "01310", false, Unknown},
		{"mixed lengths", "01310200", "01310", true, Unknown},
		{"missing input", "", "01310200", true, Unknown},
		{"missing output", "01310200", "", false, Unknown},
		{"both missing", "", "", true, Unknown},
	}

	c := LengthComparator{}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Compare(tc.a, tc.b, tc.strict))
		})
	}
}

func TestFlagString(t *testing.T) {
	assert.Equal(t, "1", Match.String())
	assert.Equal(t, "0", Mismatch.String())
	assert.Equal(t, "", Unknown.String())
}
