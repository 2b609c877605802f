// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"io"
	"log"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/mmc5983/internal/config"
	"github.com/relabs-tech/mmc5983/internal/sim"
	"github.com/relabs-tech/mmc5983/mmc5983"
)

// simBias is the bridge offset of the simulated part, in counts.
var simBias = [3]int32{412, -265, 97}

// OpenMagnetometer opens the bus selected by MAG_BUS and returns an
// uninitialized driver together with the closer for the underlying bus.
func OpenMagnetometer(cfg *config.Config) (*mmc5983.OneShot, io.Closer, error) {
	switch cfg.MagBus {
	case "sim":
		d := sim.New(cfg.SimFieldGauss, simBias)
		bus := d.I2C(cfg.MagI2CAddr)
		log.Printf("mmc5983: simulated device at 0x%02X, field %v G", cfg.MagI2CAddr, cfg.SimFieldGauss)
		return mmc5983.NewI2C(bus, cfg.MagI2CAddr), bus, nil

	case "i2c":
		if _, err := host.Init(); err != nil {
			return nil, nil, fmt.Errorf("mmc5983: periph host init: %w", err)
		}
		bus, err := i2creg.Open(cfg.MagI2CBus)
		if err != nil {
			return nil, nil, fmt.Errorf("mmc5983: i2c open %q: %w", cfg.MagI2CBus, err)
		}
		log.Printf("mmc5983: using %s at 0x%02X", bus, cfg.MagI2CAddr)
		return mmc5983.NewI2C(bus, cfg.MagI2CAddr), bus, nil

	case "spi":
		if _, err := host.Init(); err != nil {
			return nil, nil, fmt.Errorf("mmc5983: periph host init: %w", err)
		}
		port, err := spireg.Open(cfg.MagSPIDevice)
		if err != nil {
			return nil, nil, fmt.Errorf("mmc5983: spi open %q: %w", cfg.MagSPIDevice, err)
		}
		speed := physic.Frequency(cfg.MagSPISpeedHz) * physic.Hertz
		if err := port.LimitSpeed(speed); err != nil {
			port.Close()
			return nil, nil, fmt.Errorf("mmc5983: spi limit speed %s: %w", speed, err)
		}
		dev, err := mmc5983.NewSPI(port)
		if err != nil {
			port.Close()
			return nil, nil, err
		}
		log.Printf("mmc5983: using %s at %s", cfg.MagSPIDevice, speed)
		return dev, port, nil

	default:
		return nil, nil, fmt.Errorf("mmc5983: unknown bus %q", cfg.MagBus)
	}
}
