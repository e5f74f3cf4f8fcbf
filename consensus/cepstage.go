// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

package consensus

import (
	"github.com/geomdc/geomdc/cep"
)

// CepStage extracts the postal code of the input address and of each
// service's address, and compares them.
type CepStage struct {
	Normalizer cep.Normalizer
	Extractor  cep.Extractor
	Comparator cep.Comparator

	// AcceptFiveDigit lets the extractor fall back to 5-digit codes.
	AcceptFiveDigit bool
	// StrictFiveDigit lets the comparator decide between two 5-digit codes.
	StrictFiveDigit bool
}

// NewCepStage returns a stage wired with the default collaborators.
func NewCepStage(acceptFiveDigit, strictFiveDigit bool) *CepStage {
	return &CepStage{
		Normalizer:      cep.FoldingNormalizer{},
		Extractor:       cep.RegexpExtractor{},
		Comparator:      cep.LengthComparator{},
		AcceptFiveDigit: acceptFiveDigit,
		StrictFiveDigit: strictFiveDigit,
	}
}

func (s *CepStage) extract(addr string) string {
	if addr == "" {
		return ""
	}

	return s.Extractor.Extract(s.Normalizer.Normalize(addr), s.AcceptFiveDigit)
}

// Extract returns the postal codes found in the record's addresses.
func (s *CepStage) Extract(r *Record) CepCodes {
	codes := CepCodes{Input: s.extract(r.InputAddress)}
	for i, c := range r.Candidates {
		codes.Outputs[i] = s.extract(c.Address)
	}

	return codes
}

// Compare compares the input code against each output code.
func (s *CepStage) Compare(codes CepCodes) CepFlags {
	var flags CepFlags
	for i, out := range codes.Outputs {
		flags[i] = s.Comparator.Compare(codes.Input, out, s.StrictFiveDigit)
	}

	return flags
}

// Confirm extracts and compares in one step.
func (s *CepStage) Confirm(r *Record) (CepCodes, CepFlags) {
	codes := s.Extract(r)

	return codes, s.Compare(codes)
}
