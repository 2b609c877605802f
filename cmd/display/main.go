package main

import (
	"log"

	"github.com/relabs-tech/mmc5983/internal/app"
	"github.com/relabs-tech/mmc5983/internal/config"
)

func main() {
	log.Println("starting mmc5983 display (MQTT → SSD1306)")

	if err := config.InitGlobal("mmc5983_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDisplay(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
