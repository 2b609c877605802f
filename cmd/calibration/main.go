// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/calibration/main.go
//
// Repeated bridge offset calibration for the MMC5983MA.
//
// Each run fires a SET pulse, measures, fires a RESET pulse, measures again
// and takes the mean as offset. The spread over the runs shows how stable
// the offset is.
//
// Run:
//
//	go run ./cmd/calibration -n 20
//
// Output:
//
//	JSON report on stdout, or in the file given with -out.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/relabs-tech/mmc5983/internal/app"
	"github.com/relabs-tech/mmc5983/internal/config"
	"github.com/relabs-tech/mmc5983/internal/sensors"
)

func main() {
	configPath := flag.String("config", "mmc5983_config.txt", "Path to configuration file")
	runs := flag.Int("n", 10, "Number of calibration runs")
	outPath := flag.String("out", "", "Write the report to this file instead of stdout")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		fatal(fmt.Errorf("failed to load config from %s: %w", *configPath, err))
	}

	mgr := sensors.GetMagManager()
	if err := mgr.Init(); err != nil {
		fatal(fmt.Errorf("magnetometer init failed: %w", err))
	}
	defer mgr.Close()

	fmt.Fprintf(os.Stderr, "Running %d offset calibrations, keep the sensor still...\n", *runs)
	rep, err := app.RunCalibration(mgr, *runs)
	if err != nil {
		mgr.Close()
		fatal(err)
	}

	var w io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			mgr.Close()
			fatal(err)
		}
		defer f.Close()
		w = f
	}
	if err := app.WriteCalibration(w, rep); err != nil {
		mgr.Close()
		fatal(err)
	}
	fmt.Fprintf(os.Stderr, "Confidence: %.2f\n", rep.Confidence)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
