// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

// Package consensus picks, for each address record, the most trustworthy of
// the coordinates returned by three geocoding services.
//
// The computation runs in two phases. The first phase is per record:
// pairwise distances, shortest-pair label, MDC confirmation points and CEP
// flags. Between the phases the confirmation points of every record are
// summed into a Ranking of the services. The second phase resolves the final
// coordinate of each record from its label, its CEP flags and the Ranking.
package consensus

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/geomdc/geomdc/cep"
	"github.com/geomdc/geomdc/spatial"
)

// NumServices is the number of geocoding services compared per record.
const NumServices = 3

// Service identifies a geocoding service by its 1-based position.
type Service int

// ServiceNone is the provenance of a record without a final coordinate.
const ServiceNone Service = 0

// Services lists the services in index order.
var Services = [NumServices]Service{1, 2, 3}

func (s Service) String() string {
	if s < 1 || s > NumServices {
		return "none"
	}

	return strconv.Itoa(int(s))
}

// MarshalText renders the service as "1".."3" or "none".
func (s Service) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s Service) index() int {
	return int(s) - 1
}

// Candidate is the output of one geocoding service for a record.
type Candidate struct {
	// Address is the address string returned by the service. Empty when the
	// service returned nothing.
	Address string `json:"address,omitempty"`
	// Point is nil when the service returned no usable coordinate.
	Point *spatial.Point `json:"point,omitempty"`
}

// Record is one input row.
type Record struct {
	Index        int                    `json:"index"`
	InputAddress string                 `json:"input_address"`
	Candidates   [NumServices]Candidate `json:"candidates"`
}

func (r *Record) point(s Service) *spatial.Point {
	return r.Candidates[s.index()].Point
}

// Presence reports which services supplied a coordinate.
func (r *Record) Presence() [NumServices]bool {
	var p [NumServices]bool
	for i, c := range r.Candidates {
		p[i] = c.Point != nil
	}

	return p
}

// Pair is one of the three unordered service pairs.
type Pair int

const (
	Pair12 Pair = iota
	Pair13
	Pair23
)

// Pairs lists the pairs in tie-break priority order.
var Pairs = [NumServices]Pair{Pair12, Pair13, Pair23}

// Members returns the two services of the pair.
func (p Pair) Members() (Service, Service) {
	switch p {
	case Pair12:
		return 1, 2
	case Pair13:
		return 1, 3
	default:
		return 2, 3
	}
}

// Column returns the tabular column name holding the pair distance.
func (p Pair) Column() string {
	a, b := p.Members()

	return fmt.Sprintf("dist_%d_%d", a, b)
}

// Distance is an optional distance in kilometers.
type Distance struct {
	Km    float64
	Valid bool
}

// MarshalJSON renders an absent distance as null.
func (d Distance) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}

	return json.Marshal(d.Km)
}

// Distances holds the distance of each pair, indexed by Pair.
type Distances [NumServices]Distance

// Label classifies which pair, single point or nothing is best for a record.
type Label int

const (
	LabelNone Label = iota
	LabelPair12
	LabelPair13
	LabelPair23
	LabelOnly1
	LabelOnly2
	LabelOnly3
)

var labelNames = map[Label]string{
	LabelNone:   "none",
	LabelPair12: "dist_1_2",
	LabelPair13: "dist_1_3",
	LabelPair23: "dist_2_3",
	LabelOnly1:  "only_1",
	LabelOnly2:  "only_2",
	LabelOnly3:  "only_3",
}

// Labels lists every label.
var Labels = []Label{LabelPair12, LabelPair13, LabelPair23, LabelOnly1, LabelOnly2, LabelOnly3, LabelNone}

func labelForPair(p Pair) Label {
	return LabelPair12 + Label(p)
}

func labelForOnly(s Service) Label {
	return LabelOnly1 + Label(s.index())
}

func (l Label) String() string {
	if name, ok := labelNames[l]; ok {
		return name
	}

	return fmt.Sprintf("Label(%d)", int(l))
}

// MarshalText renders the label with its tabular literal.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText parses a tabular literal.
func (l *Label) UnmarshalText(text []byte) error {
	for k, v := range labelNames {
		if v == string(text) {
			*l = k

			return nil
		}
	}

	return fmt.Errorf("unknown shortest pair label %q", string(text))
}

// Pair returns the pair named by the label, if it names one.
func (l Label) Pair() (Pair, bool) {
	if l >= LabelPair12 && l <= LabelPair23 {
		return Pair(l - LabelPair12), true
	}

	return 0, false
}

// Only returns the lone service named by an Only label.
func (l Label) Only() (Service, bool) {
	if l >= LabelOnly1 && l <= LabelOnly3 {
		return Service(l-LabelOnly1) + 1, true
	}

	return ServiceNone, false
}

// Contains reports whether the service takes part in the label.
func (l Label) Contains(s Service) bool {
	if p, ok := l.Pair(); ok {
		a, b := p.Members()

		return s == a || s == b
	}

	if only, ok := l.Only(); ok {
		return only == s
	}

	return false
}

// Confirmation holds the MDC points of each service for one record.
type Confirmation [NumServices]int

// Sum returns the total points awarded in the record.
func (c Confirmation) Sum() int {
	return c[0] + c[1] + c[2]
}

// CepFlags compares the input CEP against each service's CEP.
type CepFlags [NumServices]cep.Flag

// UnknownCepFlags is used when CEP confirmation is disabled.
var UnknownCepFlags = CepFlags{cep.Unknown, cep.Unknown, cep.Unknown}

// CepCodes are the postal codes extracted for a record.
type CepCodes struct {
	Input   string              `json:"input"`
	Outputs [NumServices]string `json:"outputs"`
}

// Final is the resolved coordinate of a record.
type Final struct {
	Point  *spatial.Point `json:"point,omitempty"`
	Source Service        `json:"source"`
}

// Result holds every value derived for a record.
type Result struct {
	Index        int          `json:"index"`
	Distances    Distances    `json:"distances"`
	Label        Label        `json:"shortest_distance"`
	Confirmation Confirmation `json:"mdc"`
	Codes        *CepCodes    `json:"cep,omitempty"`
	Flags        *CepFlags    `json:"cep_match,omitempty"`
	Final        *Final       `json:"final,omitempty"`
	H3Cell       string       `json:"final_h3,omitempty"`
	Geohash      string       `json:"final_geohash,omitempty"`
}
