// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

// Package table moves address records between tabular files and the
// consensus engine.
package table

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/geomdc/geomdc/consensus"
	"github.com/geomdc/geomdc/spatial"
	"gopkg.in/yaml.v3"
)

// ColumnMapping names the input columns of a dataset.
type ColumnMapping struct {
	InputAddress    string   `yaml:"input_addr" json:"input_addr"`
	OutputAddresses []string `yaml:"output_addr" json:"output_addr"`
	Latitudes       []string `yaml:"lat" json:"lat"`
	Longitudes      []string `yaml:"lon" json:"lon"`
}

// DefaultMapping returns input_addr, output_addr_1..3, lat1..3 and lon1..3.
func DefaultMapping() ColumnMapping {
	m := ColumnMapping{InputAddress: "input_addr"}
	for _, s := range consensus.Services {
		m.OutputAddresses = append(m.OutputAddresses, fmt.Sprintf("output_addr_%d", s))
		m.Latitudes = append(m.Latitudes, fmt.Sprintf("lat%d", s))
		m.Longitudes = append(m.Longitudes, fmt.Sprintf("lon%d", s))
	}

	return m
}

// LoadMapping reads a YAML mapping. Keys absent from the file keep their
// default column names.
func LoadMapping(path string) (ColumnMapping, error) {
	m := DefaultMapping()

	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read mapping: %w", err)
	}

	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse mapping: %w", err)
	}

	return m, m.Validate()
}

// Validate checks that every column is named.
func (m ColumnMapping) Validate() error {
	if strings.TrimSpace(m.InputAddress) == "" {
		return consensus.InvalidInput("mapping: input_addr column is empty")
	}

	groups := []struct {
		key  string
		cols []string
	}{
		{"output_addr", m.OutputAddresses},
		{"lat", m.Latitudes},
		{"lon", m.Longitudes},
	}

	for _, g := range groups {
		if len(g.cols) != consensus.NumServices {
			return consensus.InvalidInput("mapping: %s needs %d columns, got %d", g.key, consensus.NumServices, len(g.cols))
		}

		for i, c := range g.cols {
			if strings.TrimSpace(c) == "" {
				return consensus.InvalidInput("mapping: %s column %d is empty", g.key, i+1)
			}
		}
	}

	return nil
}

// AddressColumns returns the columns that must hold text.
func (m ColumnMapping) AddressColumns() []string {
	return append([]string{m.InputAddress}, m.OutputAddresses...)
}

// Columns returns every referenced column.
func (m ColumnMapping) Columns() []string {
	cols := m.AddressColumns()
	cols = append(cols, m.Latitudes...)

	return append(cols, m.Longitudes...)
}

// parseCoord accepts both dot and comma decimal separators.
func parseCoord(val string) (float64, bool) {
	val = strings.TrimSpace(strings.ReplaceAll(val, ",", "."))
	if val == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}

	return f, true
}

// coordStats counts cells that held something unusable as a coordinate.
type coordStats map[string]int

// point builds a point from raw cells. Empty cells are simply missing;
// unparsable or out of range values are counted against the column.
func (s coordStats) point(latCol, lonCol, lat, lon string) *spatial.Point {
	if strings.TrimSpace(lat) == "" || strings.TrimSpace(lon) == "" {
		return nil
	}

	la, okLat := parseCoord(lat)
	lo, okLon := parseCoord(lon)

	if !okLat || !okLon {
		if !okLat {
			s[latCol]++
		}

		if !okLon {
			s[lonCol]++
		}

		return nil
	}

	p, err := spatial.NewPoint(la, lo)
	if err != nil {
		s[latCol+"/"+lonCol]++

		return nil
	}

	return p
}

func (s coordStats) log(logf func(string, ...any)) {
	for col, n := range s {
		logf("⚠️  %d unusable coordinate values in %s treated as missing", n, col)
	}
}
