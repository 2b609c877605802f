package app

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/mmc5983/internal/config"
	"github.com/relabs-tech/mmc5983/internal/mag"
	"github.com/relabs-tech/mmc5983/internal/orientation"
)

// printSample writes one line per sample.
func printSample(w io.Writer, s mag.Sample) {
	temp := ""
	if s.TempC != nil {
		temp = fmt.Sprintf("  T=%5.1f°C", *s.TempC)
	}
	fmt.Fprintf(w,
		"[MAG %-10s] X=%+8.5f Y=%+8.5f Z=%+8.5f |B|=%7.5f G  HDG=%5.1f° %-2s%s\n",
		s.Mode, s.X, s.Y, s.Z, s.Norm, s.Heading, orientation.Cardinal(s.Heading), temp,
	)
}

func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID(cfg.MQTTClientIDConsole))

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicMag, 0, func(_ mqtt.Client, msg mqtt.Message) {
		s, err := mag.Decode(msg.Payload())
		if err != nil {
			log.Printf("console: %v", err)
			return
		}
		printSample(os.Stdout, s)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicMag)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
