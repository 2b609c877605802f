// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/relabs-tech/mmc5983/internal/sensors"
)

const (
	// Offset repeatability heuristics, in counts.
	offsetStdGood = 2.0
	offsetStdBad  = 20.0

	// Confidence floor (we never want hard zero unless we error out)
	confFloor = 0.05
)

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// CalibrationReport summarizes repeated SET/RESET offset measurements.
type CalibrationReport struct {
	SchemaVersion int    `json:"schema_version"`
	CalibrationAt string `json:"calibration_at"` // RFC3339
	Runs          int    `json:"runs"`

	// Offsets in counts, one per run.
	Offsets []Vec3 `json:"offsets"`
	Mean    Vec3   `json:"offset_mean"`
	StdDev  Vec3   `json:"offset_stddev"`

	// Field measured with the last offset, in Gauss.
	Residual Vec3 `json:"field_gauss"`

	Confidence float64  `json:"confidence"`
	Notes      []string `json:"notes,omitempty"`
}

// RunCalibration runs the offset calibration n times and reports the spread.
// The device keeps the offset of the last run.
func RunCalibration(mgr *sensors.MagManager, n int) (CalibrationReport, error) {
	if n <= 0 {
		return CalibrationReport{}, fmt.Errorf("calibration: run count must be positive, got %d", n)
	}
	rep := CalibrationReport{
		SchemaVersion: 1,
		CalibrationAt: time.Now().Format(time.RFC3339),
		Runs:          n,
	}

	for i := 0; i < n; i++ {
		off, err := mgr.Calibrate()
		if err != nil {
			return rep, fmt.Errorf("calibration: run %d: %w", i+1, err)
		}
		rep.Offsets = append(rep.Offsets, Vec3{X: float64(off.X), Y: float64(off.Y), Z: float64(off.Z)})
	}
	rep.Mean, rep.StdDev = computeStats(rep.Offsets)

	s, err := mgr.ReadSample(false)
	if err != nil {
		return rep, fmt.Errorf("calibration: read field: %w", err)
	}
	rep.Residual = Vec3{X: s.X, Y: s.Y, Z: s.Z}

	rep.Confidence = repeatabilityConfidence(rep.StdDev)
	if n == 1 {
		rep.Notes = append(rep.Notes, "single_run_no_spread")
	}
	return rep, nil
}

// WriteCalibration writes the report as indented JSON.
func WriteCalibration(w io.Writer, rep CalibrationReport) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}

func computeStats(values []Vec3) (mean, std Vec3) {
	n := float64(len(values))
	if n == 0 {
		return Vec3{}, Vec3{}
	}
	for _, v := range values {
		mean.X += v.X
		mean.Y += v.Y
		mean.Z += v.Z
	}
	mean = Vec3{X: mean.X / n, Y: mean.Y / n, Z: mean.Z / n}

	var vx, vy, vz float64
	for _, v := range values {
		dx := v.X - mean.X
		dy := v.Y - mean.Y
		dz := v.Z - mean.Z
		vx += dx * dx
		vy += dy * dy
		vz += dz * dz
	}
	std = Vec3{
		X: math.Sqrt(vx / n),
		Y: math.Sqrt(vy / n),
		Z: math.Sqrt(vz / n),
	}
	return mean, std
}

// repeatabilityConfidence maps the worst axis spread to [confFloor, 1].
func repeatabilityConfidence(std Vec3) float64 {
	worst := math.Max(std.X, math.Max(std.Y, std.Z))
	if worst <= offsetStdGood {
		return 1
	}
	c := 1 - (worst-offsetStdGood)/(offsetStdBad-offsetStdGood)
	return math.Max(confFloor, math.Min(1, c))
}
