// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the consensus engine over HTTP.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/geomdc/geomdc/consensus"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MaxRecords bounds the batch accepted by a single request.
const MaxRecords = 100_000

// Server runs consensus batches submitted as JSON.
type Server struct {
	workers int
}

// NewServer returns a server whose engines use the given number of workers
// per phase. Zero means one per CPU.
func NewServer(workers int) *Server {
	return &Server{workers: workers}
}

// RunOptions selects the optional stages for one request.
type RunOptions struct {
	ExtractCEP       bool `json:"extract_cep"`
	CompareCEP       bool `json:"compare_cep"`
	AcceptFiveDigit  bool `json:"accept_five_digit"`
	StrictFiveDigit  bool `json:"strict_five_digit"`
	Resolve          bool `json:"resolve"`
	H3Resolution     int  `json:"h3_resolution"`
	GeohashPrecision uint `json:"geohash_precision"`
}

// ConsensusRequest is the body of POST /api/consensus. Records are indexed
// by position.
type ConsensusRequest struct {
	Records []consensus.Record `json:"records"`
	Options RunOptions         `json:"options"`
}

// ConsensusResponse is the outcome of a run.
type ConsensusResponse struct {
	RunID string `json:"run_id"`
	*consensus.Output
}

// Router builds the HTTP handler.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.GET("/api/health", s.health)
	r.POST("/api/consensus", s.runConsensus)

	return r
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	log.Printf("🌐 Listening on %s", addr)

	return s.Router().Run(addr)
}

func (s *Server) health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) runConsensus(ctx *gin.Context) {
	var req ConsensusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	if len(req.Records) > MaxRecords {
		ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("at most %d records per request", MaxRecords)})

		return
	}

	if err := prepare(req.Records); err != nil {
		ctx.JSON(status(err), gin.H{"error": err.Error()})

		return
	}

	o := req.Options

	engine, err := consensus.NewEngine(consensus.Options{
		Workers:          s.workers,
		ExtractCEP:       o.ExtractCEP,
		CompareCEP:       o.CompareCEP,
		AcceptFiveDigit:  o.AcceptFiveDigit,
		StrictFiveDigit:  o.StrictFiveDigit,
		Resolve:          o.Resolve,
		H3Resolution:     o.H3Resolution,
		GeohashPrecision: o.GeohashPrecision,
	})
	if err != nil {
		ctx.JSON(status(err), gin.H{"error": err.Error()})

		return
	}

	runID := uuid.NewString()
	engine.Logf = func(format string, args ...any) {
		log.Printf("[%s] "+format, append([]any{runID}, args...)...)
	}

	out, err := engine.Run(req.Records)
	if err != nil {
		ctx.JSON(status(err), gin.H{"error": err.Error(), "run_id": runID})

		return
	}

	ctx.JSON(http.StatusOK, ConsensusResponse{RunID: runID, Output: out})
}

// prepare indexes the records by position and rejects coordinates outside
// the valid range.
func prepare(records []consensus.Record) error {
	for i := range records {
		records[i].Index = i

		for j, c := range records[i].Candidates {
			if c.Point == nil {
				continue
			}

			if err := c.Point.Validate(); err != nil {
				return &consensus.Error{
					Type:    consensus.ErrorTypeInvalidInput,
					Message: fmt.Sprintf("record %d, service %d", i, j+1),
					Err:     err,
				}
			}
		}
	}

	return nil
}

func status(err error) int {
	switch {
	case consensus.IsInvalidInput(err):
		return http.StatusBadRequest
	case consensus.IsMissingPrerequisite(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
