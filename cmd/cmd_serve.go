// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/geomdc/geomdc/server"
	"github.com/spf13/cobra"
)

var serveOptions = struct {
	Addr    string
	Workers int
}{}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the consensus pipeline over HTTP",
	Long: `Starts an HTTP server with two endpoints:

  GET  /api/health     liveness probe
  POST /api/consensus  runs a JSON batch of records and returns the results,
                       the service ranking and a summary
`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return server.NewServer(serveOptions.Workers).Run(serveOptions.Addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveOptions.Addr, "addr", "localhost:8080", "Listen address")
	serveCmd.Flags().IntVar(&serveOptions.Workers, "workers", 0, "Goroutines per phase. Defaults to the number of CPUs")
}
