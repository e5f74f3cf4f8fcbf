// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

package consensus

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// progressEvery is how many records a worker processes between progress
// notifications.
const progressEvery = 500

// Options selects the optional stages of the pipeline.
type Options struct {
	// Workers bounds the number of goroutines per phase. Defaults to the
	// number of CPUs.
	Workers int

	// ExtractCEP extracts the postal codes of the input and output addresses.
	ExtractCEP bool
	// CompareCEP compares the input postal code with each output's. Requires
	// ExtractCEP.
	CompareCEP bool
	// AcceptFiveDigit accepts 5-digit codes when no 8-digit code is present.
	AcceptFiveDigit bool
	// StrictFiveDigit honors equality between two 5-digit codes.
	StrictFiveDigit bool

	// Resolve computes the final coordinate of each record.
	Resolve bool
	// H3Resolution, when positive, tags the final coordinate with its H3 cell
	// at that resolution. Requires Resolve.
	H3Resolution int
	// GeohashPrecision, when positive, tags the final coordinate with a
	// geohash of that many characters. Requires Resolve.
	GeohashPrecision uint
}

// Validate checks stage dependencies before any record is processed.
func (o Options) Validate() error {
	if o.CompareCEP && !o.ExtractCEP {
		return MissingPrerequisite("CEP comparison requires CEP confirmation to be enabled")
	}

	if (o.AcceptFiveDigit || o.StrictFiveDigit) && !o.ExtractCEP {
		return MissingPrerequisite("5-digit CEP handling requires CEP confirmation to be enabled")
	}

	if (o.H3Resolution > 0 || o.GeohashPrecision > 0) && !o.Resolve {
		return MissingPrerequisite("cell indexing of the final coordinate requires resolution to be enabled")
	}

	if o.H3Resolution < 0 || o.H3Resolution > 15 {
		return InvalidInput("h3 resolution must be between 1 and 15 (got %d)", o.H3Resolution)
	}

	if o.GeohashPrecision > 12 {
		return InvalidInput("geohash precision must be between 1 and 12 (got %d)", o.GeohashPrecision)
	}

	return nil
}

// ProgressFunc receives progress notifications. It is called from several
// goroutines.
type ProgressFunc func(phase string, done, total int)

// Engine runs the consensus pipeline over a batch of records.
type Engine struct {
	opts Options

	// Cep is the postal code stage; replace its collaborators to customise
	// extraction or comparison.
	Cep *CepStage
	// Logf receives informational messages. Nil discards them.
	Logf func(format string, args ...any)
	// Progress receives per-phase progress. Nil discards it.
	Progress ProgressFunc
}

// NewEngine validates the options and returns an engine with the default
// CEP collaborators.
func NewEngine(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	return &Engine{
		opts: opts,
		Cep:  NewCepStage(opts.AcceptFiveDigit, opts.StrictFiveDigit),
	}, nil
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Output is the outcome of a run.
type Output struct {
	Results []Result `json:"results"`
	Ranking Ranking  `json:"ranking"`
	Summary Summary  `json:"summary"`
}

// Run processes the records. Records are read only; the results are indexed
// like the input.
func (e *Engine) Run(records []Record) (*Output, error) {
	results := make([]Result, len(records))

	e.logf("Scoring %d records with %d workers", len(records), e.opts.Workers)

	err := e.forEach("scoring", len(records), func(i int) error {
		results[i] = e.score(&records[i])

		return nil
	})
	if err != nil {
		return nil, err
	}

	// every record is scored before the ranking exists
	confirmations := make([]Confirmation, len(results))
	for i := range results {
		confirmations[i] = results[i].Confirmation
	}

	ranking := Aggregate(confirmations)
	e.logf("Service totals %v, order %v", ranking.Totals, ranking.Order)

	if ranking.Tied() {
		e.logf("Services tied on MDC totals; ties broken by service index")
	}

	if e.opts.Resolve {
		resolver, err := NewResolver(&ranking)
		if err != nil {
			return nil, err
		}

		err = e.forEach("resolving", len(records), func(i int) error {
			return e.resolve(resolver, &records[i], &results[i])
		})
		if err != nil {
			return nil, err
		}
	}

	return &Output{
		Results: results,
		Ranking: ranking,
		Summary: Summarize(results, ranking),
	}, nil
}

func (e *Engine) score(r *Record) Result {
	d := PairwiseDistances(r)
	label := ShortestPair(d, r.Presence())

	res := Result{
		Index:        r.Index,
		Distances:    d,
		Label:        label,
		Confirmation: Score(label),
	}

	if e.opts.ExtractCEP {
		codes := e.Cep.Extract(r)
		res.Codes = &codes

		if e.opts.CompareCEP {
			flags := e.Cep.Compare(codes)
			res.Flags = &flags
		}
	}

	return res
}

func (e *Engine) resolve(rv *Resolver, r *Record, res *Result) error {
	flags := UnknownCepFlags
	if res.Flags != nil {
		flags = *res.Flags
	}

	final := rv.Resolve(r, res.Label, flags)
	res.Final = &final

	if final.Point == nil {
		return nil
	}

	if e.opts.H3Resolution > 0 {
		cell, err := final.Point.H3Cell(e.opts.H3Resolution)
		if err != nil {
			return fmt.Errorf("record %d: %w", r.Index, err)
		}

		res.H3Cell = cell
	}

	if e.opts.GeohashPrecision > 0 {
		res.Geohash = final.Point.Geohash(e.opts.GeohashPrecision)
	}

	return nil
}

// forEach calls fn for every index in [0, n), splitting the range in one
// chunk per worker.
func (e *Engine) forEach(phase string, n int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}

	workers := e.opts.Workers
	chunk := (n + workers - 1) / workers

	var (
		g    errgroup.Group
		done atomic.Int64
	)

	g.SetLimit(workers)

	for start := 0; start < n; start += chunk {
		start := start
		end := min(start+chunk, n)

		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := fn(i); err != nil {
					return err
				}

				if c := done.Add(1); c%progressEvery == 0 {
					e.progress(phase, int(c), n)
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	e.progress(phase, n, n)

	return nil
}

func (e *Engine) logf(format string, args ...any) {
	if e.Logf != nil {
		e.Logf(format, args...)
	}
}

func (e *Engine) progress(phase string, done, total int) {
	if e.Progress != nil {
		e.Progress(phase, done, total)
	}
}
