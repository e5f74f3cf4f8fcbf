// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

package table

import (
	"fmt"

	"github.com/geomdc/geomdc/cep"
	"github.com/geomdc/geomdc/consensus"
)

// Column is an output column and its DuckDB type.
type Column struct {
	Name string
	Type string
}

// OutputColumns lists the columns appended to the dataset for the given
// options.
func OutputColumns(opts consensus.Options) []Column {
	cols := make([]Column, 0, 20)

	for _, p := range consensus.Pairs {
		cols = append(cols, Column{p.Column(), "DOUBLE"})
	}

	cols = append(cols, Column{"shortest_distance", "VARCHAR"})

	for _, s := range consensus.Services {
		cols = append(cols, Column{fmt.Sprintf("mdc_%d", s), "INTEGER"})
	}

	if opts.ExtractCEP {
		cols = append(cols, Column{"cep_input", "VARCHAR"})
		for _, s := range consensus.Services {
			cols = append(cols, Column{fmt.Sprintf("cep_%d", s), "VARCHAR"})
		}
	}

	if opts.CompareCEP {
		for _, s := range consensus.Services {
			cols = append(cols, Column{fmt.Sprintf("cep_match_%d", s), "INTEGER"})
		}
	}

	if opts.Resolve {
		cols = append(cols,
			Column{"final_lat", "DOUBLE"},
			Column{"final_lon", "DOUBLE"},
			Column{"final_source", "VARCHAR"},
		)

		if opts.H3Resolution > 0 {
			cols = append(cols, Column{"final_h3", "VARCHAR"})
		}

		if opts.GeohashPrecision > 0 {
			cols = append(cols, Column{"final_geohash", "VARCHAR"})
		}
	}

	return cols
}

// OutputValues returns the values of OutputColumns for one result. Absent
// values are nil.
func OutputValues(r *consensus.Result, opts consensus.Options) []any {
	vals := make([]any, 0, 20)

	for _, d := range r.Distances {
		if d.Valid {
			vals = append(vals, d.Km)
		} else {
			vals = append(vals, nil)
		}
	}

	vals = append(vals, r.Label.String())

	for _, c := range r.Confirmation {
		vals = append(vals, c)
	}

	if opts.ExtractCEP {
		var codes consensus.CepCodes
		if r.Codes != nil {
			codes = *r.Codes
		}

		vals = append(vals, nullString(codes.Input))
		for _, c := range codes.Outputs {
			vals = append(vals, nullString(c))
		}
	}

	if opts.CompareCEP {
		flags := consensus.UnknownCepFlags
		if r.Flags != nil {
			flags = *r.Flags
		}

		for _, f := range flags {
			if f == cep.Unknown {
				vals = append(vals, nil)
			} else {
				vals = append(vals, int(f))
			}
		}
	}

	if opts.Resolve {
		if r.Final != nil && r.Final.Point != nil {
			vals = append(vals, r.Final.Point.Lat, r.Final.Point.Lng, r.Final.Source.String())
		} else {
			vals = append(vals, nil, nil, consensus.ServiceNone.String())
		}

		if opts.H3Resolution > 0 {
			vals = append(vals, nullString(r.H3Cell))
		}

		if opts.GeohashPrecision > 0 {
			vals = append(vals, nullString(r.Geohash))
		}
	}

	return vals
}

func nullString(s string) any {
	if s == "" {
		return nil
	}

	return s
}
