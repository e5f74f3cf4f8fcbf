// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/geomdc/geomdc/cep"
	"github.com/geomdc/geomdc/spatial"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Dev tools",
}

var debugCepOptions = struct {
	AcceptFiveDigit bool
}{}

var debugCepCmd = &cobra.Command{
	Use:   "cep",
	Short: "Extracts the CEP of one address per line",
	Long: `Reads one address per line and prints the normalized address followed by
the CEP found in it.

$ echo "Av. Paulista, 1578 - São Paulo, 01310-200" | geomdc debug cep
01310200	av paulista 1578 sao paulo 01310200
	`,
	RunE: func(_ *cobra.Command, _ []string) error {
		if isatty.IsTerminal(os.Stdin.Fd()) {
			fmt.Fprintln(os.Stderr, "Enter addresses to analyze, one per line…")
		}

		return debugCep(os.Stdin, os.Stdout, debugCepOptions.AcceptFiveDigit)
	},
}

func debugCep(in io.Reader, out io.Writer, acceptFiveDigit bool) error {
	var (
		normalizer cep.FoldingNormalizer
		extractor  cep.RegexpExtractor
	)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		norm := normalizer.Normalize(scanner.Text())
		code := extractor.Extract(norm, acceptFiveDigit)

		if code == "" {
			code = "-"
		}

		fmt.Fprintf(out, "%s\t%s\n", code, norm)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	return nil
}

var debugDistanceCmd = &cobra.Command{
	Use:   "distance <lat1> <lon1> <lat2> <lon2>",
	Short: "Prints the haversine distance in kilometers between two points",
	Args:  cobra.ExactArgs(4),
	RunE: func(_ *cobra.Command, args []string) error {
		km, err := debugDistance(args)
		if err != nil {
			return err
		}

		fmt.Printf("%.6f\n", km)

		return nil
	},
}

func debugDistance(args []string) (float64, error) {
	var vals [4]float64

	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return 0, fmt.Errorf("argument %d: %w", i+1, err)
		}

		vals[i] = v
	}

	a, err := spatial.NewPoint(vals[0], vals[1])
	if err != nil {
		return 0, err
	}

	b, err := spatial.NewPoint(vals[2], vals[3])
	if err != nil {
		return 0, err
	}

	return a.HaversineDistance(b), nil
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugCepCmd)
	debugCmd.AddCommand(debugDistanceCmd)
	debugCepCmd.Flags().BoolVar(&debugCepOptions.AcceptFiveDigit, "five-digit", false, "Accept 5-digit CEPs")
}
