// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mmc5983 controls a MEMSIC MMC5983MA three-axis magnetoresistive
// magnetometer over I²C or SPI.
//
// A new driver starts in one-shot mode:
//
//	dev := mmc5983.NewI2C(bus, mmc5983.I2CAddr)
//	if err := dev.Init(); err != nil { ... }
//	if _, err := dev.CalibrateOffset(mmc5983.SleepDelay{}); err != nil { ... }
//	field, err := dev.CalibratedField()
//	x, y, z := field.Gauss()
//
// Continuous acquisition is a separate handle type. IntoContinuous hands the
// device over to a *Continuous and releases the *OneShot; IntoOneShot does the
// reverse. Operations that only make sense in one mode only exist on that
// handle.
//
// Every blocking operation Op has an OpContext variant that runs the same
// register sequence cooperatively: each bus transaction and settling delay
// observes the context, and status polling yields between reads.
//
// Handles are not safe for concurrent use.
//
// # Datasheet
//
// https://www.memsic.com/Public/Uploads/uploadfile/files/20220119/MMC5983MADatasheetRevA.pdf
package mmc5983
