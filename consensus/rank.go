// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

package consensus

import (
	"fmt"
	"sort"
)

// Rank is the position of a service in the dataset-wide ranking.
type Rank int

const (
	RankBest Rank = iota + 1
	RankMiddle
	RankWorst
)

func (r Rank) String() string {
	switch r {
	case RankBest:
		return "best"
	case RankMiddle:
		return "middle"
	case RankWorst:
		return "worst"
	default:
		return fmt.Sprintf("Rank(%d)", int(r))
	}
}

// MarshalText renders the rank name.
func (r Rank) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Ranking orders the services by their total MDC points over a dataset.
// It is a value: once built it is never modified.
type Ranking struct {
	Totals [NumServices]int     `json:"totals"`
	Order  [NumServices]Service `json:"order"`
	ranks  [NumServices]Rank
}

// Aggregate sums the confirmation points of every record and ranks the
// services. Services with equal totals are ordered by index, so service 1
// beats service 2 beats service 3 on a tie.
func Aggregate(confirmations []Confirmation) Ranking {
	var totals [NumServices]int

	for _, c := range confirmations {
		for i, v := range c {
			totals[i] += v
		}
	}

	return NewRanking(totals)
}

// NewRanking ranks services from precomputed totals.
func NewRanking(totals [NumServices]int) Ranking {
	r := Ranking{Totals: totals, Order: Services}

	sort.SliceStable(r.Order[:], func(i, j int) bool {
		return totals[r.Order[i].index()] > totals[r.Order[j].index()]
	})

	for pos, s := range r.Order {
		r.ranks[s.index()] = Rank(pos + 1)
	}

	return r
}

// Rank returns the rank of a service.
func (r Ranking) Rank(s Service) Rank {
	return r.ranks[s.index()]
}

// Better returns whichever of a and b ranks higher.
func (r Ranking) Better(a, b Service) Service {
	if r.Rank(b) < r.Rank(a) {
		return b
	}

	return a
}

// Best returns the highest ranked service among the candidates, or
// ServiceNone if there are none.
func (r Ranking) Best(candidates ...Service) Service {
	best := ServiceNone

	for _, s := range candidates {
		if best == ServiceNone {
			best = s

			continue
		}

		best = r.Better(best, s)
	}

	return best
}

// Tied reports whether at least two services share the same total.
func (r Ranking) Tied() bool {
	t := r.Totals

	return t[0] == t[1] || t[0] == t[2] || t[1] == t[2]
}

// ready reports whether the ranking was built by Aggregate or NewRanking.
func (r Ranking) ready() bool {
	return r.ranks[0] != 0
}
