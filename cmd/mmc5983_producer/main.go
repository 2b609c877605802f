// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/mmc5983/internal/app"
	"github.com/relabs-tech/mmc5983/internal/config"
)

func main() {
	configPath := flag.String("config", "./mmc5983_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting MMC5983MA producer (magnetometer → MQTT)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunMMC5983Producer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
