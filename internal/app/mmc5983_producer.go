// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/relabs-tech/mmc5983/internal/config"
	"github.com/relabs-tech/mmc5983/internal/mag"
	"github.com/relabs-tech/mmc5983/internal/sensors"
)

// clientID appends a short random suffix so several instances can share a
// broker.
func clientID(base string) string {
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
}

// sampler reads samples and asks for a temperature every tempEvery samples.
type sampler struct {
	mgr       *sensors.MagManager
	tempEvery int
	n         int
}

func (s *sampler) next() (mag.Sample, error) {
	withTemp := s.tempEvery > 0 && s.n%s.tempEvery == 0
	s.n++
	return s.mgr.ReadSample(withTemp)
}

// RunMMC5983Producer publishes magnetometer samples to MQTT until SIGINT or
// SIGTERM.
func RunMMC5983Producer() error {
	cfg := config.Get()

	mgr := sensors.GetMagManager()
	if err := mgr.Init(); err != nil {
		return err
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Printf("mmc5983: close: %v", err)
		}
	}()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID(cfg.MQTTClientIDProducer))
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	defer client.Disconnect(250)
	log.Printf("mmc5983: connected to MQTT broker at %s", cfg.MQTTBroker)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	interval := time.Duration(cfg.MagSampleInterval) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s := &sampler{mgr: mgr, tempEvery: cfg.MagTempEvery}
	log.Printf("mmc5983: producer started, %s mode, every %s to %s (%s)", mgr.Mode(), interval, cfg.TopicMag, cfg.PayloadFormat)

	for {
		select {
		case <-sigCh:
			log.Println("mmc5983: shutting down")
			return nil
		case <-ticker.C:
		}

		sample, err := s.next()
		if err != nil {
			log.Printf("mmc5983: read error: %v", err)
			continue
		}
		payload, err := mag.Encode(cfg.PayloadFormat, sample)
		if err != nil {
			log.Printf("mmc5983: encode error: %v", err)
			continue
		}
		token := client.Publish(cfg.TopicMag, 0, false, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("mmc5983: publish error: %v", token.Error())
		}
	}
}
