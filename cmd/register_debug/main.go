// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"
	"net/http"

	"github.com/relabs-tech/mmc5983/internal/app"
	"github.com/relabs-tech/mmc5983/internal/config"
	"github.com/relabs-tech/mmc5983/internal/sensors"
)

func main() {
	log.Println("starting MMC5983MA register debug tool (standalone)")

	if err := config.InitGlobal("mmc5983_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	log.Println("Initializing magnetometer...")
	mgr := sensors.GetMagManager()
	if err := mgr.Init(); err != nil {
		log.Fatalf("magnetometer init: %v", err)
	}
	defer mgr.Close()

	id, err := mgr.ProductID()
	if err != nil {
		log.Printf("Warning: product id read failed: %v", err)
	} else {
		log.Printf("Product ID %s", id)
	}

	http.HandleFunc("/ws", app.HandleRegisterDebugWS)

	// API endpoint for live field data
	http.HandleFunc("/api/field", app.HandleFieldData)

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/register_debug.html")
	})

	addr := app.RegisterDebugAddr()
	log.Printf("Register debug tool listening on %s", addr)
	log.Printf("Open http://localhost%s in your browser", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
