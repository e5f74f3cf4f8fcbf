// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geomdc/geomdc/consensus"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServerTest(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	return NewServer(2).Router()
}

func post(t *testing.T, router *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer

	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/consensus", &buf)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	return w
}

const batch = `{
	"records": [
		{
			"input_address": "Av. Paulista, 1578, 01310-200",
			"candidates": [
				{"address": "Avenida Paulista 1578, 01310-200", "point": {"lat": -23.5614, "lng": -46.6559}},
				{"address": "Av Paulista 1578, 01311-000", "point": {"lat": -23.5615, "lng": -46.6560}},
				{"address": "Paulista", "point": {"lat": -23.5505, "lng": -46.6333}}
			]
		},
		{
			"input_address": "Praça da Sé, 01001-000",
			"candidates": [
				{},
				{"address": "Praça da Sé, 01001-000", "point": {"lat": -23.5505, "lng": -46.6333}},
				{"address": "Sé", "point": {"lat": -23.5506, "lng": -46.6334}}
			]
		}
	],
	"options": {"extract_cep": true, "compare_cep": true, "resolve": true, "geohash_precision": 8}
}`

func TestHealth(t *testing.T) {
	router := setupServerTest(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestConsensusAPI(t *testing.T) {
	router := setupServerTest(t)

	w := post(t, router, batch)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		RunID   string `json:"run_id"`
		Results []struct {
			Index int             `json:"index"`
			Label consensus.Label `json:"shortest_distance"`
			Mdc   [3]int          `json:"mdc"`
			Match []*int          `json:"cep_match"`
			Final struct {
				Source string `json:"source"`
			} `json:"final"`
			Geohash string `json:"final_geohash"`
		} `json:"results"`
		Ranking struct {
			Totals [3]int `json:"totals"`
		} `json:"ranking"`
		Summary struct {
			Records int `json:"records"`
		} `json:"summary"`
	}

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	_, err := uuid.Parse(resp.RunID)
	require.NoError(t, err)

	require.Len(t, resp.Results, 2)
	assert.Equal(t, 1, resp.Results[1].Index)
	assert.Equal(t, consensus.LabelPair12, resp.Results[0].Label)
	assert.Equal(t, consensus.LabelPair23, resp.Results[1].Label)
	assert.Equal(t, [3]int{1, 2, 1}, resp.Ranking.Totals)
	assert.Equal(t, 2, resp.Summary.Records)

	// record 0: only service 1 carries the input CEP
	require.Len(t, resp.Results[0].Match, 3)
	assert.Equal(t, 1, *resp.Results[0].Match[0])
	assert.Equal(t, 0, *resp.Results[0].Match[1])
	assert.Nil(t, resp.Results[0].Match[2])
	assert.Equal(t, "1", resp.Results[0].Final.Source)

	assert.Equal(t, "2", resp.Results[1].Final.Source)
	assert.Len(t, resp.Results[1].Geohash, 8)
}

func TestConsensusAPIErrors(t *testing.T) {
	router := setupServerTest(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"malformed json", `{"records": [`, http.StatusBadRequest},
		{
			"records without coordinates",
			ConsensusRequest{Records: []consensus.Record{{
				Candidates: [consensus.NumServices]consensus.Candidate{{Address: "x"}, {}, {}},
			}, {
				Candidates: [consensus.NumServices]consensus.Candidate{{}, {Point: nil}, {}},
			}}},
			http.StatusOK,
		},
		{
			"compare without extract",
			ConsensusRequest{Options: RunOptions{CompareCEP: true}},
			http.StatusUnprocessableEntity,
		},
		{
			"geohash precision out of range",
			ConsensusRequest{Options: RunOptions{Resolve: true, GeohashPrecision: 20}},
			http.StatusBadRequest,
		},
		{
			"invalid coordinate",
			`{"records": [{"candidates": [{"point": {"lat": 123, "lng": 0}}, {}, {}]}]}`,
			http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := post(t, router, tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}
