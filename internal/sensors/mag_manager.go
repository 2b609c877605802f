// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/mmc5983/internal/config"
	"github.com/relabs-tech/mmc5983/internal/mag"
	"github.com/relabs-tech/mmc5983/mmc5983"
)

// Mode names used in samples and by the tools.
const (
	ModeOneShot    = "oneshot"
	ModeContinuous = "continuous"
)

// ErrNotInitialized is returned by MagManager methods before Init.
var ErrNotInitialized = errors.New("magnetometer not initialized")

// magHandle is the part of the driver API shared by both modes.
type magHandle interface {
	Init() error
	ProductID() (mmc5983.ProductID, error)
	Status() (mmc5983.Status, error)
	SetBandwidth(mmc5983.Bandwidth) error
	Set(mmc5983.Delay) error
	Reset(mmc5983.Delay) error
	SelfTestPositive(mmc5983.Delay) error
	SelfTestNegative(mmc5983.Delay) error
	Temperature() (mmc5983.Temperature, error)
	CalibrateOffset(mmc5983.Delay) (mmc5983.CalibrationOffset, error)
	Offset() (mmc5983.CalibrationOffset, error)
	State() (mmc5983.State, error)
	ReadRegisters() ([]mmc5983.RegisterValue, error)
	Release() (mmc5983.Transport, error)
	String() string
}

// MagManager owns the magnetometer and serializes access to it. The MQTT
// producer, the console and the websocket sessions share one instance.
type MagManager struct {
	mu     sync.Mutex
	one    *mmc5983.OneShot
	cont   *mmc5983.Continuous
	closer io.Closer
	delay  mmc5983.Delay
}

var (
	magManager     *MagManager
	magManagerOnce sync.Once
)

// GetMagManager returns the process-wide manager.
func GetMagManager() *MagManager {
	magManagerOnce.Do(func() {
		magManager = &MagManager{delay: mmc5983.SleepDelay{}}
	})
	return magManager
}

// NewMagManager wraps an already opened driver. closer may be nil.
func NewMagManager(dev *mmc5983.OneShot, closer io.Closer) *MagManager {
	return &MagManager{one: dev, closer: closer, delay: mmc5983.SleepDelay{}}
}

// Init opens the bus from the global configuration and brings the device
// up. Calling Init on an initialized manager is a no-op.
func (m *MagManager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.one != nil || m.cont != nil {
		return nil
	}
	dev, closer, err := OpenMagnetometer(config.Get())
	if err != nil {
		return err
	}
	m.one, m.closer = dev, closer
	if err := m.setupLocked(config.Get()); err != nil {
		m.closeLocked()
		return err
	}
	return nil
}

// Setup runs the bring-up sequence on an opened device: Init, bandwidth,
// optional offset calibration followed by a SET pulse, and the configured
// acquisition mode.
func (m *MagManager) Setup(cfg *config.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setupLocked(cfg)
}

func (m *MagManager) setupLocked(cfg *config.Config) error {
	if err := m.oneShotLocked(); err != nil {
		return err
	}
	if err := m.one.Init(); err != nil {
		return fmt.Errorf("mmc5983: init: %w", err)
	}
	id, _ := m.one.ProductID()
	log.Printf("mmc5983: product id %s on %s", id, m.one)

	bw, err := cfg.Bandwidth()
	if err != nil {
		return err
	}
	if err := m.one.SetBandwidth(bw); err != nil {
		return fmt.Errorf("mmc5983: set bandwidth: %w", err)
	}
	log.Printf("mmc5983: bandwidth %s", bw)

	if cfg.MagCalibrateOnStart {
		off, err := m.calibrateLocked(m.one)
		if err != nil {
			return err
		}
		log.Printf("mmc5983: offset %d %d %d", off.X, off.Y, off.Z)
	}

	if cfg.MagMode == ModeContinuous {
		return m.continuousLocked(cfg.ContinuousConfig())
	}
	return nil
}

func (m *MagManager) active() (magHandle, error) {
	switch {
	case m.cont != nil:
		return m.cont, nil
	case m.one != nil:
		return m.one, nil
	default:
		return nil, ErrNotInitialized
	}
}

// Mode reports the acquisition mode.
func (m *MagManager) Mode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cont != nil {
		return ModeContinuous
	}
	return ModeOneShot
}

// Reinitialize runs Init again, leaving continuous mode first.
func (m *MagManager) Reinitialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.oneShotLocked(); err != nil {
		return err
	}
	return m.one.Init()
}

func (m *MagManager) ProductID() (mmc5983.ProductID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.active()
	if err != nil {
		return 0, err
	}
	return h.ProductID()
}

func (m *MagManager) Status() (mmc5983.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.active()
	if err != nil {
		return 0, err
	}
	return h.Status()
}

func (m *MagManager) SetBandwidth(bw mmc5983.Bandwidth) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.active()
	if err != nil {
		return err
	}
	return h.SetBandwidth(bw)
}

// Pulse fires one of "set", "reset", "selftest+" or "selftest-".
func (m *MagManager) Pulse(kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.active()
	if err != nil {
		return err
	}
	switch kind {
	case "set":
		return h.Set(m.delay)
	case "reset":
		return h.Reset(m.delay)
	case "selftest+":
		return h.SelfTestPositive(m.delay)
	case "selftest-":
		return h.SelfTestNegative(m.delay)
	default:
		return fmt.Errorf("unknown pulse %q", kind)
	}
}

// Calibrate measures the bridge offset and leaves the sensor SET.
func (m *MagManager) Calibrate() (mmc5983.CalibrationOffset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.active()
	if err != nil {
		return mmc5983.CalibrationOffset{}, err
	}
	return m.calibrateLocked(h)
}

func (m *MagManager) calibrateLocked(h magHandle) (mmc5983.CalibrationOffset, error) {
	off, err := h.CalibrateOffset(m.delay)
	if err != nil {
		return off, fmt.Errorf("mmc5983: calibrate: %w", err)
	}
	if err := h.Set(m.delay); err != nil {
		return off, fmt.Errorf("mmc5983: set after calibration: %w", err)
	}
	return off, nil
}

func (m *MagManager) Offset() (mmc5983.CalibrationOffset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.active()
	if err != nil {
		return mmc5983.CalibrationOffset{}, err
	}
	return h.Offset()
}

func (m *MagManager) Temperature() (mmc5983.Temperature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.active()
	if err != nil {
		return 0, err
	}
	return h.Temperature()
}

// RawField reads one uncorrected field sample in the current mode.
func (m *MagManager) RawField() (mmc5983.MagneticField, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rawFieldLocked()
}

func (m *MagManager) rawFieldLocked() (mmc5983.MagneticField, error) {
	switch {
	case m.cont != nil:
		return m.cont.MagneticField()
	case m.one != nil:
		return m.one.Measure()
	default:
		return mmc5983.MagneticField{}, ErrNotInitialized
	}
}

// ReadSample reads the field and, if withTemp is set, the temperature.
func (m *MagManager) ReadSample(withTemp bool) (mag.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.active()
	if err != nil {
		return mag.Sample{}, err
	}
	raw, err := m.rawFieldLocked()
	if err != nil {
		return mag.Sample{}, fmt.Errorf("mmc5983: read field: %w", err)
	}
	off, err := h.Offset()
	if err != nil {
		return mag.Sample{}, err
	}
	mode := ModeOneShot
	if m.cont != nil {
		mode = ModeContinuous
	}
	s := mag.NewSample(time.Now().UTC(), mode, raw, off)
	if withTemp {
		t, err := h.Temperature()
		if err != nil {
			return mag.Sample{}, fmt.Errorf("mmc5983: read temperature: %w", err)
		}
		s = s.WithTemperature(t)
	}
	return s, nil
}

// Continuous switches to continuous mode. In continuous mode it updates the
// rate and the automatic SET/RESET setting instead.
func (m *MagManager) Continuous(cfg mmc5983.ContinuousConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.continuousLocked(cfg)
}

func (m *MagManager) continuousLocked(cfg mmc5983.ContinuousConfig) error {
	if m.cont != nil {
		if cfg.AutoSetReset {
			if err := m.cont.EnableAutoSetReset(cfg.Period); err != nil {
				return err
			}
		} else if err := m.cont.DisableAutoSetReset(); err != nil {
			return err
		}
		return m.cont.SetFrequency(cfg.Rate)
	}
	if m.one == nil {
		return ErrNotInitialized
	}
	c, err := m.one.IntoContinuous(cfg)
	if err != nil {
		return fmt.Errorf("mmc5983: enter continuous mode: %w", err)
	}
	m.cont, m.one = c, nil
	log.Printf("mmc5983: %s", cfg.Rate)
	return nil
}

// OneShot leaves continuous mode. It is a no-op in one-shot mode.
func (m *MagManager) OneShot() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.oneShotLocked()
}

func (m *MagManager) oneShotLocked() error {
	if m.cont == nil {
		if m.one == nil {
			return ErrNotInitialized
		}
		return nil
	}
	o, err := m.cont.IntoOneShot()
	if err != nil {
		return fmt.Errorf("mmc5983: leave continuous mode: %w", err)
	}
	m.one, m.cont = o, nil
	return nil
}

// SetFrequency changes the continuous mode output data rate.
func (m *MagManager) SetFrequency(rate mmc5983.OutputDataRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cont == nil {
		return fmt.Errorf("output data rate needs continuous mode")
	}
	return m.cont.SetFrequency(rate)
}

// AutoSetReset enables periodic SET with period p, or disables it.
func (m *MagManager) AutoSetReset(enable bool, p mmc5983.SetResetPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cont == nil {
		return fmt.Errorf("automatic SET/RESET needs continuous mode")
	}
	if !enable {
		return m.cont.DisableAutoSetReset()
	}
	return m.cont.EnableAutoSetReset(p)
}

// ModeConfig decodes the acquisition settings from the shadow.
func (m *MagManager) ModeConfig() (mmc5983.ModeConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cont != nil {
		return m.cont.ModeConfig()
	}
	if m.one == nil {
		return mmc5983.ModeConfig{}, ErrNotInitialized
	}
	return mmc5983.ModeConfig{}, nil
}

func (m *MagManager) State() (mmc5983.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.active()
	if err != nil {
		return mmc5983.State{}, err
	}
	return h.State()
}

// ReadAllRegisters dumps the readable registers.
func (m *MagManager) ReadAllRegisters() ([]mmc5983.RegisterValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.active()
	if err != nil {
		return nil, err
	}
	return h.ReadRegisters()
}

// ReadRegister reads a single register through a dump, so control registers
// come back as the device reports them.
func (m *MagManager) ReadRegister(reg mmc5983.Register) (byte, error) {
	regs, err := m.ReadAllRegisters()
	if err != nil {
		return 0, err
	}
	for _, rv := range regs {
		if rv.Reg == reg {
			return rv.Value, nil
		}
	}
	return 0, fmt.Errorf("register %s is not readable", reg)
}

// GetRegisterMap returns the register metadata for the debug tools.
func (m *MagManager) GetRegisterMap() []RegisterInfo {
	return getMMC5983RegisterMap()
}

// Close returns the device to one-shot mode, releases the driver and closes
// the bus.
func (m *MagManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

func (m *MagManager) closeLocked() error {
	var errs []error
	if m.cont != nil {
		if err := m.oneShotLocked(); err != nil {
			errs = append(errs, err)
			m.cont.Release()
			m.cont = nil
		}
	}
	if m.one != nil {
		m.one.Release()
		m.one = nil
	}
	if m.closer != nil {
		if err := m.closer.Close(); err != nil {
			errs = append(errs, err)
		}
		m.closer = nil
	}
	return errors.Join(errs...)
}
