// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

package consensus

import (
	"github.com/geomdc/geomdc/cep"
)

// Summary aggregates a run for reporting.
type Summary struct {
	Records int                  `json:"records"`
	Labels  map[Label]int        `json:"labels"`
	Totals  [NumServices]int     `json:"totals"`
	Order   [NumServices]Service `json:"order"`
	Tied    bool                 `json:"tied"`

	// CepMatches counts, per service, the records whose CEP matched the
	// input. Nil when CEP comparison was not run.
	CepMatches *[NumServices]int `json:"cep_matches,omitempty"`

	// Sources counts the final coordinates supplied by each service and
	// Unresolved the records left without one. Nil/zero when resolution
	// was not run.
	Sources    map[Service]int `json:"sources,omitempty"`
	Unresolved int             `json:"unresolved"`
}

// Summarize builds the summary of a run.
func Summarize(results []Result, ranking Ranking) Summary {
	s := Summary{
		Records: len(results),
		Labels:  make(map[Label]int, len(Labels)),
		Totals:  ranking.Totals,
		Order:   ranking.Order,
		Tied:    ranking.Tied(),
	}

	for i := range results {
		r := &results[i]
		s.Labels[r.Label]++

		if r.Flags != nil {
			if s.CepMatches == nil {
				s.CepMatches = &[NumServices]int{}
			}

			for j, f := range r.Flags {
				if f == cep.Match {
					s.CepMatches[j]++
				}
			}
		}

		if r.Final != nil {
			if s.Sources == nil {
				s.Sources = make(map[Service]int, NumServices)
			}

			if r.Final.Source == ServiceNone {
				s.Unresolved++
			} else {
				s.Sources[r.Final.Source]++
			}
		}
	}

	return s
}
