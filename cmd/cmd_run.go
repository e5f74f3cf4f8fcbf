// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/geomdc/geomdc/consensus"
	"github.com/geomdc/geomdc/table"
	"github.com/geomdc/geomdc/utils"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type runFlags struct {
	Input        string
	Output       string
	Table        string
	Sheet        string
	DbPath       string
	ResultsTable string
	RankingTable string
	Mapping      string
	JSON         bool
	Options      consensus.Options
}

var runOptions = &runFlags{}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs the consensus pipeline over a dataset",
	Long: `Reads a CSV, Parquet, XLSX or DuckDB dataset holding an input address and
the address and coordinates returned by three geocoding services, and appends
the pairwise distances, the closest pair, the per-service MDC points and,
optionally, the CEP confirmation and the final coordinate.

$ geomdc run --input enderecos.csv --output resultado.parquet --cep --cep-compare --resolve
`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runConsensus(runOptions, os.Stdout)
	},
}

func runConsensus(f *runFlags, stdout io.Writer) error {
	mapping := table.DefaultMapping()

	if f.Mapping != "" {
		var err error

		mapping, err = table.LoadMapping(f.Mapping)
		if err != nil {
			return err
		}
	}

	// fail on bad stage combinations before touching the input
	engine, err := consensus.NewEngine(f.Options)
	if err != nil {
		return err
	}

	engine.Logf = log.Printf
	opts := engine.Options()

	inExt := strings.ToLower(filepath.Ext(f.Input))
	outExt := strings.ToLower(filepath.Ext(f.Output))

	if (outExt == ".xlsx") != (inExt == ".xlsx") && f.Output != "" {
		return consensus.InvalidInput("xlsx input and output go together (got %s to %s)", f.Input, f.Output)
	}

	var out *consensus.Output

	if inExt == ".xlsx" {
		sheet, records, err := table.ReadXLSX(f.Input, f.Sheet, mapping, log.Printf)
		if err != nil {
			return err
		}

		log.Printf("📄 Read %s records from %s", utils.FormatInt(int64(len(records))), f.Input)

		if out, err = run(engine, records); err != nil {
			return err
		}

		dest := f.Output
		if dest == "" {
			dest = strings.TrimSuffix(f.Input, filepath.Ext(f.Input)) + "_mdc.xlsx"
		}

		if err := table.WriteXLSX(dest, sheet, out.Results, out.Ranking, opts); err != nil {
			return fmt.Errorf("writing %s: %w", dest, err)
		}

		log.Printf("✅ Wrote %s", dest)
	} else {
		if out, err = runDuckDB(f, engine, mapping, inExt); err != nil {
			return err
		}
	}

	if f.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(out.Summary)
	}

	printSummary(stdout, &out.Summary)

	return nil
}

func runDuckDB(f *runFlags, engine *consensus.Engine, mapping table.ColumnMapping, inExt string) (*consensus.Output, error) {
	dsn := f.DbPath
	if inExt == ".duckdb" {
		dsn = f.Input
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	store := table.NewStore(db)

	if inExt != ".duckdb" {
		if err := store.Import(f.Input, f.Table); err != nil {
			return nil, err
		}
	}

	records, err := store.LoadRecords(f.Table, mapping)
	if err != nil {
		return nil, err
	}

	log.Printf("📄 Read %s records from %s", utils.FormatInt(int64(len(records))), f.Input)

	out, err := run(engine, records)
	if err != nil {
		return nil, err
	}

	opts := engine.Options()
	if err := store.SaveResults(f.Table, f.ResultsTable, out.Results, opts); err != nil {
		return nil, err
	}

	if err := store.SaveRanking(f.RankingTable, out.Ranking); err != nil {
		return nil, err
	}

	if f.Output != "" {
		if err := store.Export(f.ResultsTable, f.Output); err != nil {
			return nil, err
		}

		log.Printf("✅ Wrote %s", f.Output)
	} else if inExt == ".duckdb" {
		log.Printf("✅ Wrote tables %s and %s in %s", f.ResultsTable, f.RankingTable, f.Input)
	} else {
		log.Printf("⚠️  No --output given, results were not exported")
	}

	return out, nil
}

// run executes the engine, drawing a progress bar per phase when stderr is
// a terminal.
func run(engine *consensus.Engine, records []consensus.Record) (*consensus.Output, error) {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return engine.Run(records)
	}

	var (
		mu   sync.Mutex
		bars = map[string]*progressbar.ProgressBar{}
	)

	engine.Progress = func(phase string, done, total int) {
		mu.Lock()
		defer mu.Unlock()

		bar, ok := bars[phase]
		if !ok {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription(phase),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			bars[phase] = bar
		}

		if err := bar.Set(done); err != nil {
			log.Printf("Updating progress bar: %v", err)
		}
	}

	return engine.Run(records)
}

func printSummary(w io.Writer, s *consensus.Summary) {
	total := int64(s.Records)
	fmt.Fprintf(w, "Records: %s\n", utils.FormatInt(total))

	labels := &utils.Box{Title: "Closest pair:", Header: []string{"Label", "Records", "%"}}
	for _, l := range consensus.Labels {
		n := s.Labels[l]
		labels.Rows = append(labels.Rows, []string{l.String(), utils.FormatInt(int64(n)), utils.Percent(n, s.Records)})
	}

	labels.Render(w)

	ranking := &utils.Box{Title: "Service ranking:", Header: []string{"Rank", "Service", "MDC points"}}
	for i, svc := range s.Order {
		ranking.Rows = append(ranking.Rows, []string{
			strconv.Itoa(i + 1), svc.String(), utils.FormatInt(int64(s.Totals[svc-1])),
		})
	}

	ranking.Render(w)

	if s.Tied {
		fmt.Fprintln(w, "Note: tied totals are ordered by service number.")
	}

	if s.CepMatches != nil {
		cep := &utils.Box{Title: "CEP confirmation:", Header: []string{"Service", "Matches", "%"}}
		for i, svc := range consensus.Services {
			n := s.CepMatches[i]
			cep.Rows = append(cep.Rows, []string{svc.String(), utils.FormatInt(int64(n)), utils.Percent(n, s.Records)})
		}

		cep.Render(w)
	}

	if s.Sources != nil {
		src := &utils.Box{Title: "Final coordinate source:", Header: []string{"Source", "Records", "%"}}
		for _, svc := range consensus.Services {
			n := s.Sources[svc]
			src.Rows = append(src.Rows, []string{svc.String(), utils.FormatInt(int64(n)), utils.Percent(n, s.Records)})
		}

		src.Rows = append(src.Rows, []string{
			consensus.ServiceNone.String(), utils.FormatInt(int64(s.Unresolved)), utils.Percent(s.Unresolved, s.Records),
		})

		src.Render(w)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()
	flags.StringVarP(&runOptions.Input, "input", "i", "", "Input dataset (.csv, .tsv, .parquet, .xlsx or .duckdb)")
	flags.StringVarP(&runOptions.Output, "output", "o", "", "Output file (.csv, .tsv, .parquet or .xlsx)")
	flags.StringVar(&runOptions.Table, "table", "source", "Table holding the dataset; the import target for file inputs")
	flags.StringVar(&runOptions.Sheet, "sheet", "", "Worksheet of an xlsx input. Defaults to the first one")
	flags.StringVar(&runOptions.DbPath, "db-path", "", "DuckDB database used as scratch space for file inputs. Empty keeps it in memory")
	flags.StringVar(&runOptions.ResultsTable, "results-table", "results", "Table receiving the dataset with the output columns")
	flags.StringVar(&runOptions.RankingTable, "ranking-table", "service_ranking", "Table receiving the per-service totals and ranks")
	flags.StringVar(&runOptions.Mapping, "mapping", "", "YAML file renaming the input columns")
	flags.BoolVar(&runOptions.JSON, "json", false, "Print the summary as JSON")

	flags.IntVar(&runOptions.Options.Workers, "workers", 0, "Goroutines per phase. Defaults to the number of CPUs")
	flags.BoolVar(&runOptions.Options.ExtractCEP, "cep", false, "Extract the CEP of the input and output addresses")
	flags.BoolVar(&runOptions.Options.CompareCEP, "cep-compare", false, "Compare each service CEP with the input CEP (requires --cep)")
	flags.BoolVar(&runOptions.Options.AcceptFiveDigit, "cep-five-digit", false, "Accept 5-digit CEPs when no 8-digit CEP is present")
	flags.BoolVar(&runOptions.Options.StrictFiveDigit, "cep-strict-five", false, "Treat equal 5-digit CEPs as a match")
	flags.BoolVar(&runOptions.Options.Resolve, "resolve", false, "Select the final coordinate of each record")
	flags.IntVar(&runOptions.Options.H3Resolution, "h3-res", 0, "Tag the final coordinate with its H3 cell at this resolution (1-15)")
	flags.UintVar(&runOptions.Options.GeohashPrecision, "geohash", 0, "Tag the final coordinate with a geohash of this length (1-12)")

	if err := runCmd.MarkFlagRequired("input"); err != nil {
		panic(err)
	}
}
