// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

package consensus

import (
	"testing"

	"github.com/geomdc/geomdc/cep"
	"github.com/geomdc/geomdc/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	m = cep.Match
	x = cep.Mismatch
	u = cep.Unknown
)

func newTestResolver(t *testing.T, totals [NumServices]int) *Resolver {
	t.Helper()

	ranking := NewRanking(totals)

	rv, err := NewResolver(&ranking)
	require.NoError(t, err)

	return rv
}

func TestNewResolverRequiresRanking(t *testing.T) {
	_, err := NewResolver(nil)
	require.Error(t, err)
	assert.True(t, IsMissingPrerequisite(err))

	_, err = NewResolver(&Ranking{})
	require.Error(t, err)
	assert.True(t, IsMissingPrerequisite(err))
}

func TestResolverScenarioAllConfirmed(t *testing.T) {
	// 1 best, 2 middle, 3 worst
	rv := newTestResolver(t, [NumServices]int{30, 20, 10})

	assert.Equal(t, Service(1), rv.Select(LabelPair13, CepFlags{m, m, m}))
}

func TestResolverScenarioSingleConfirmed(t *testing.T) {
	for _, totals := range [][NumServices]int{{0, 10, 20}, {20, 10, 0}, {5, 5, 5}} {
		rv := newTestResolver(t, totals)

		for _, label := range []Label{LabelPair12, LabelPair13, LabelPair23} {
			assert.Equal(t, Service(1), rv.Select(label, CepFlags{m, x, x}), "label %s totals %v", label, totals)
		}
	}
}

func TestResolverSelect(t *testing.T) {
	// 3 best, 1 middle, 2 worst
	totals := [NumServices]int{20, 10, 30}

	tests := []struct {
		name  string
		label Label
		flags CepFlags
		want  Service
	}{
		{"one confirmed ignores label", LabelPair12, CepFlags{x, x, m}, 3},
		{"one confirmed among unknowns", LabelPair13, CepFlags{u, m, u}, 2},
		{"two confirmed form the pair", LabelPair12, CepFlags{m, m, x}, 1},
		{"two confirmed form the pair, rank decides", LabelPair23, CepFlags{u, m, m}, 3},
		{"two confirmed, label pairs confirmed with unconfirmed", LabelPair13, CepFlags{x, m, m}, 3},
		{"two confirmed, label picks worse ranked", LabelPair12, CepFlags{x, m, m}, 2},
		{"two confirmed 1 and 2, label 23", LabelPair23, CepFlags{m, m, u}, 2},
		{"three confirmed, pair 12", LabelPair12, CepFlags{m, m, m}, 1},
		{"three confirmed, pair 23", LabelPair23, CepFlags{m, m, m}, 3},
		{"none confirmed, pair", LabelPair12, CepFlags{x, x, x}, 1},
		{"none confirmed, pair with best", LabelPair13, CepFlags{u, u, u}, 3},
		{"none confirmed, only", LabelOnly2, CepFlags{u, u, u}, 2},
		{"none confirmed, nothing", LabelNone, CepFlags{u, u, u}, ServiceNone},
		{"one confirmed wins over the lone point", LabelOnly3, CepFlags{m, u, u}, 1},
		{"three confirmed, no pair falls back to rank", LabelNone, CepFlags{m, m, m}, 3},
		{"two confirmed, label is the lone point of one", LabelOnly1, CepFlags{m, m, u}, 1},
	}

	rv := newTestResolver(t, totals)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, rv.Select(tc.label, tc.flags))
		})
	}
}

func TestResolverSymmetricTwoAndThree(t *testing.T) {
	// services 2 and 3 confirmed, 1 not: the rule must not depend on which
	// coordinate component is being resolved
	rv := newTestResolver(t, [NumServices]int{0, 5, 9})
	r := recordWith(paulista, se, copacabana)

	final := rv.Resolve(r, LabelPair23, CepFlags{x, m, m})
	require.NotNil(t, final.Point)
	assert.Equal(t, Service(3), final.Source)
	assert.Equal(t, *copacabana, *final.Point)
}

func TestResolverDeterministic(t *testing.T) {
	rv := newTestResolver(t, [NumServices]int{7, 7, 3})
	flagSets := []CepFlags{{m, m, x}, {u, u, u}, {m, m, m}, {x, m, u}}

	for _, label := range Labels {
		for _, flags := range flagSets {
			first := rv.Select(label, flags)
			for i := 0; i < 10; i++ {
				assert.Equal(t, first, rv.Select(label, flags))
			}
		}
	}
}

func TestResolveCopiesPoint(t *testing.T) {
	rv := newTestResolver(t, [NumServices]int{1, 0, 0})
	src := &spatial.Point{Lat: -23.5, Lng: -46.6}
	r := recordWith(src, nil, nil)

	final := rv.Resolve(r, LabelOnly1, UnknownCepFlags)
	require.NotNil(t, final.Point)
	assert.Equal(t, Service(1), final.Source)

	final.Point.Lat = 0
	assert.Equal(t, -23.5, src.Lat, "resolver must not alias caller points")
}

func TestResolveNone(t *testing.T) {
	rv := newTestResolver(t, [NumServices]int{1, 0, 0})

	final := rv.Resolve(recordWith(nil, nil, nil), LabelNone, UnknownCepFlags)
	assert.Nil(t, final.Point)
	assert.Equal(t, ServiceNone, final.Source)
}

func TestResolveConfirmedWithoutCoordinate(t *testing.T) {
	// service 1 is the only CEP match but returned no point; the
	// mismatched services must not take its place
	rv := newTestResolver(t, [NumServices]int{0, 5, 9})

	final := rv.Resolve(recordWith(nil, se, copacabana), LabelPair23, CepFlags{m, x, x})
	assert.Nil(t, final.Point)
	assert.Equal(t, ServiceNone, final.Source)

	final = rv.Resolve(recordWith(nil, se, copacabana), LabelPair23, CepFlags{m, m, u})
	require.NotNil(t, final.Point)
	assert.Equal(t, Service(2), final.Source)
}
