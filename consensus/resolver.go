// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

package consensus

import (
	"github.com/geomdc/geomdc/cep"
)

// Resolver picks the final coordinate of a record. It holds a copy of the
// dataset ranking and no other state, so it is safe for concurrent use.
type Resolver struct {
	ranking Ranking
}

// NewResolver returns a resolver bound to a completed ranking.
func NewResolver(ranking *Ranking) (*Resolver, error) {
	if ranking == nil || !ranking.ready() {
		return nil, MissingPrerequisite("final coordinate resolution requires the service ranking to be aggregated first")
	}

	return &Resolver{ranking: *ranking}, nil
}

// Ranking returns the snapshot the resolver works with.
func (rv *Resolver) Ranking() Ranking {
	return rv.ranking
}

// Select applies the priority policy and returns the chosen service, or
// ServiceNone. Confirmation comes from the CEP flags alone: a confirmed
// service without a coordinate still wins its branch and yields no point.
//
//   - one confirmed service wins outright;
//   - two confirmed: if they form the label's pair the better ranked wins,
//     otherwise the one in the label, otherwise the better ranked;
//   - three confirmed: the better ranked member of the label's pair;
//   - none confirmed: the better ranked member of the pair, the lone point,
//     or nothing.
func (rv *Resolver) Select(label Label, flags CepFlags) Service {
	confirmed := make([]Service, 0, NumServices)

	for _, s := range Services {
		if flags[s.index()] == cep.Match {
			confirmed = append(confirmed, s)
		}
	}

	switch len(confirmed) {
	case 1:
		return confirmed[0]
	case 2:
		return rv.selectTwo(label, confirmed[0], confirmed[1])
	case 3:
		if sel := rv.selectByLabel(label); sel != ServiceNone {
			return sel
		}

		return rv.ranking.Best(confirmed...)
	default:
		return rv.selectByLabel(label)
	}
}

func (rv *Resolver) selectTwo(label Label, a, b Service) Service {
	inA, inB := label.Contains(a), label.Contains(b)

	switch {
	case inA && inB:
		return rv.ranking.Better(a, b)
	case inA:
		return a
	case inB:
		return b
	default:
		return rv.ranking.Better(a, b)
	}
}

func (rv *Resolver) selectByLabel(label Label) Service {
	if p, ok := label.Pair(); ok {
		return rv.ranking.Better(p.Members())
	}

	if s, ok := label.Only(); ok {
		return s
	}

	return ServiceNone
}

// Resolve selects the final coordinate of a record.
func (rv *Resolver) Resolve(r *Record, label Label, flags CepFlags) Final {
	s := rv.Select(label, flags)
	if s == ServiceNone {
		return Final{Source: ServiceNone}
	}

	p := r.point(s)
	if p == nil {
		return Final{Source: ServiceNone}
	}

	pt := *p

	return Final{Point: &pt, Source: s}
}
