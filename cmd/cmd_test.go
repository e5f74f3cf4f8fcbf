// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/geomdc/geomdc/consensus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const datasetCSV = "id,input_addr,output_addr_1,output_addr_2,output_addr_3,lat1,lon1,lat2,lon2,lat3,lon3\n" +
	`1,"Av. Paulista, 1578, 01310-200","Avenida Paulista 1578, 01310-200","Av Paulista 1578, 01310-200","Paulista",-23.5614,-46.6559,-23.5615,-46.6560,-23.5505,-46.6333` + "\n" +
	`2,"Praça da Sé, 01001-000",,"Praça da Sé, 01001-000","Sé",,,-23.5505,-46.6333,-23.5506,-46.6334` + "\n" +
	`3,"Rua Inexistente",,,,,,,,,` + "\n"

func TestDebugCep(t *testing.T) {
	in := strings.NewReader("Av. Paulista, 1578 - São Paulo, 01310-200\nRua Augusta 500, 01305\nsem cep\n")

	var out bytes.Buffer
	require.NoError(t, debugCep(in, &out, true))

	assert.Equal(t,
		"01310200\tav paulista 1578 sao paulo 01310200\n"+
			"01305\trua augusta 500 01305\n"+
			"-\tsem cep\n",
		out.String())
}

func TestDebugDistance(t *testing.T) {
	km, err := debugDistance([]string{"-23.5505", "-46.6333", "-22.9068", "-43.1729"})
	require.NoError(t, err)
	assert.InDelta(t, 360.749, km, 0.01)

	_, err = debugDistance([]string{"95", "0", "0", "0"})
	assert.Error(t, err)

	_, err = debugDistance([]string{"x", "0", "0", "0"})
	assert.Error(t, err)
}

func testFlags(input, output string) *runFlags {
	return &runFlags{
		Input:        input,
		Output:       output,
		Table:        "source",
		ResultsTable: "results",
		RankingTable: "service_ranking",
		JSON:         true,
		Options: consensus.Options{
			Workers:    2,
			ExtractCEP: true,
			CompareCEP: true,
			Resolve:    true,
		},
	}
}

func TestRunConsensusCSV(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(input, []byte(datasetCSV), 0o644))

	output := filepath.Join(dir, "out.parquet")

	var stdout bytes.Buffer
	require.NoError(t, runConsensus(testFlags(input, output), &stdout))

	var summary struct {
		Records    int            `json:"records"`
		Labels     map[string]int `json:"labels"`
		Unresolved int            `json:"unresolved"`
	}

	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	assert.Equal(t, 3, summary.Records)
	assert.Equal(t, 1, summary.Labels["dist_1_2"])
	assert.Equal(t, 1, summary.Labels["dist_2_3"])
	assert.Equal(t, 1, summary.Labels["none"])
	assert.Equal(t, 1, summary.Unresolved)

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	defer db.Close()

	var (
		id     int64
		source string
	)

	query := fmt.Sprintf(`SELECT id, final_source FROM read_parquet('%s') WHERE shortest_distance = 'dist_2_3'`, output)
	err = db.QueryRow(query).Scan(&id, &source)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
	assert.Equal(t, "2", source)
}

func TestRunConsensusXLSX(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.xlsx")

	f := excelize.NewFile()

	for i, line := range [][]any{
		{"input_addr", "output_addr_1", "output_addr_2", "output_addr_3", "lat1", "lon1", "lat2", "lon2", "lat3", "lon3"},
		{"Praça da Sé, 01001-000", "Sé, 01001-000", "Praça da Sé, 01001-000", "Sé", -23.5505, -46.6333, -23.5505, -46.6334, -23.5600, -46.6400},
	} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &line))
	}

	require.NoError(t, f.SaveAs(input))
	require.NoError(t, f.Close())

	flags := testFlags(input, "")
	flags.JSON = false

	var stdout bytes.Buffer
	require.NoError(t, runConsensus(flags, &stdout))

	assert.Contains(t, stdout.String(), "Service ranking:")
	assert.Contains(t, stdout.String(), "Final coordinate source:")

	out, err := excelize.OpenFile(filepath.Join(dir, "in_mdc.xlsx"))
	require.NoError(t, err)
	defer out.Close()

	rows, err := out.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Contains(t, rows[0], "final_source")
}

func TestRunConsensusRejects(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(input, []byte(datasetCSV), 0o644))

	t.Run("xlsx output from csv", func(t *testing.T) {
		err := runConsensus(testFlags(input, filepath.Join(dir, "out.xlsx")), &bytes.Buffer{})
		assert.True(t, consensus.IsInvalidInput(err), "got %v", err)
	})

	t.Run("compare without extract", func(t *testing.T) {
		flags := testFlags(input, "")
		flags.Options.ExtractCEP = false

		err := runConsensus(flags, &bytes.Buffer{})
		assert.True(t, consensus.IsMissingPrerequisite(err), "got %v", err)
	})

	t.Run("bad mapping", func(t *testing.T) {
		mapping := filepath.Join(dir, "mapping.yaml")
		require.NoError(t, os.WriteFile(mapping, []byte("input_addr: endereco\n"), 0o644))

		flags := testFlags(input, "")
		flags.Mapping = mapping

		err := runConsensus(flags, &bytes.Buffer{})
		assert.True(t, consensus.IsInvalidInput(err), "got %v", err)
	})
}
