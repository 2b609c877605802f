package app

import (
	"fmt"
	"image"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/mmc5983/internal/config"
	"github.com/relabs-tech/mmc5983/internal/mag"
	"github.com/relabs-tech/mmc5983/internal/orientation"
)

func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized on I2C bus %s", cfg.DisplayI2CBus)

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	latest := &latestSample{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID(cfg.MQTTClientIDDisplay))

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicMag, 0, func(_ mqtt.Client, msg mqtt.Message) {
		s, err := mag.Decode(msg.Payload())
		if err != nil {
			log.Printf("display: %v", err)
			return
		}
		latest.store(s)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicMag)

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	// Only some samples carry a temperature; keep showing the last one.
	var lastTemp *float64
	for range ticker.C {
		s, ok := latest.get()
		if s.TempC != nil {
			lastTemp = s.TempC
		}
		if err := dev.Draw(dev.Bounds(), renderField(s, ok, lastTemp), image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

// renderField lays out one sample on a 128x64 screen.
func renderField(s mag.Sample, haveData bool, tempC *float64) *image1bit.VerticalLSB {
	img, drawer := newCanvas()

	if !haveData {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("MMC5983MA"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
		return img
	}

	drawer.Dot = fixed.P(0, 12)
	drawer.DrawBytes([]byte(fmt.Sprintf("X:%+.4f G", s.X)))

	drawer.Dot = fixed.P(0, 25)
	drawer.DrawBytes([]byte(fmt.Sprintf("Y:%+.4f G", s.Y)))

	drawer.Dot = fixed.P(0, 38)
	drawer.DrawBytes([]byte(fmt.Sprintf("Z:%+.4f G", s.Z)))

	drawer.Dot = fixed.P(0, 51)
	drawer.DrawBytes([]byte(fmt.Sprintf("|B|:%.4f", s.Norm)))

	line := fmt.Sprintf("%3.0f %s", s.Heading, orientation.Cardinal(s.Heading))
	if tempC != nil {
		line += fmt.Sprintf(" %.1fC", *tempC)
	}
	drawer.Dot = fixed.P(0, 63)
	drawer.DrawBytes([]byte(line))

	return img
}

func renderSplash() *image1bit.VerticalLSB {
	img, drawer := newCanvas()

	drawer.Dot = fixed.P(30, 26)
	drawer.DrawBytes([]byte("MMC5983"))

	drawer.Dot = fixed.P(10, 43)
	drawer.DrawBytes([]byte("Magnetometer"))

	return img
}
