// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/geomdc/geomdc/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
