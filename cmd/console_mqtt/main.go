package main

import (
	"log"

	"github.com/relabs-tech/mmc5983/internal/app"
	"github.com/relabs-tech/mmc5983/internal/config"
)

func main() {
	log.Println("starting mmc5983 console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal("mmc5983_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsoleMQTT(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
