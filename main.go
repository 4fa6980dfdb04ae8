// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/JulianYG/GeoMemo/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
