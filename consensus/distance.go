// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

package consensus

// PairwiseDistances computes the haversine distance of every pair whose two
// endpoints are present. Pairs with a missing endpoint stay invalid.
func PairwiseDistances(r *Record) Distances {
	var d Distances

	for _, p := range Pairs {
		a, b := p.Members()

		pa, pb := r.point(a), r.point(b)
		if pa == nil || pb == nil {
			continue
		}

		d[p] = Distance{Km: pa.HaversineDistance(pb), Valid: true}
	}

	return d
}

// ShortestPair labels the record with its closest pair. Ties keep the first
// pair in Pairs order. Without any distance the label falls back to the only
// present coordinate, or LabelNone.
func ShortestPair(d Distances, presence [NumServices]bool) Label {
	best := -1

	for _, p := range Pairs {
		if !d[p].Valid {
			continue
		}

		if best < 0 || d[p].Km < d[best].Km {
			best = int(p)
		}
	}

	if best >= 0 {
		return labelForPair(Pair(best))
	}

	only := ServiceNone

	for _, s := range Services {
		if !presence[s.index()] {
			continue
		}

		if only != ServiceNone {
			// two coordinates but no distance cannot happen with consistent
			// inputs; keep the first one
			break
		}

		only = s
	}

	if only == ServiceNone {
		return LabelNone
	}

	return labelForOnly(only)
}

// Score awards one MDC point to each member of the shortest pair. Lone or
// absent coordinates are unverifiable and earn nothing.
func Score(l Label) Confirmation {
	var c Confirmation

	p, ok := l.Pair()
	if !ok {
		return c
	}

	a, b := p.Members()
	c[a.index()] = 1
	c[b.index()] = 1

	return c
}
