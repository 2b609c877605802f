// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/mmc5983/internal/config"
	"github.com/relabs-tech/mmc5983/internal/mag"
	"github.com/relabs-tech/mmc5983/internal/sensors"
	"github.com/relabs-tech/mmc5983/internal/sim"
	"github.com/relabs-tech/mmc5983/mmc5983"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.MQTTBroker = "tcp://localhost:1883"
	cfg.MagBus = "sim"
	cfg.MagCalibrateOnStart = true
	return cfg
}

func newTestManager(t *testing.T, field [3]float64) (*sensors.MagManager, *sim.Device) {
	t.Helper()
	d := sim.New(field, [3]int32{300, -120, 60})
	m := sensors.NewMagManager(mmc5983.NewI2C(d.I2C(mmc5983.I2CAddr), mmc5983.I2CAddr), nil)
	require.NoError(t, m.Setup(testConfig()))
	t.Cleanup(func() { m.Close() })
	return m, d
}

func TestConsoleCommands(t *testing.T) {
	m, d := newTestManager(t, [3]float64{0, 0.3, 0})
	var out bytes.Buffer
	c := NewConsole(m, testConfig(), &out)

	run := func(line string) string {
		out.Reset()
		assert.False(t, c.Exec(line), line)
		return out.String()
	}

	assert.Contains(t, run("id"), "0x30 (ok)")
	assert.Contains(t, run("status"), "status")
	assert.Contains(t, run("bw 800"), "bandwidth 800Hz")
	assert.Contains(t, run("bw 300"), "error")
	assert.Contains(t, run("field"), "heading=90.0° E")
	assert.Contains(t, run("temp"), "25.0°C")
	assert.Contains(t, run("raw"), "raw")
	assert.Contains(t, run("cal"), "offset X=131372 Y=130952 Z=131132")
	assert.Contains(t, run("reset"), "reset pulse sent")
	assert.Equal(t, -1, d.Polarity())
	assert.Contains(t, run("set"), "set pulse sent")
	assert.Contains(t, run("selftest +"), "self-test + pulse sent")
	assert.Contains(t, run("selftest x"), "usage")

	assert.Contains(t, run("freq 100"), "needs continuous mode")
	assert.Contains(t, run("cont 50 100"), "continuous 50Hz, auto SET every 100")
	assert.True(t, d.Continuous())
	assert.Contains(t, run("freq 1000"), "continuous 1000Hz")
	assert.Contains(t, run("autosr off"), "mode continuous 1000Hz")
	assert.Contains(t, run("field"), "G")
	assert.Contains(t, run("oneshot"), "one-shot mode")
	assert.False(t, d.Continuous())
	assert.Contains(t, run("mode"), "one-shot")

	assert.Contains(t, run("regs"), "PRODUCT_ID(0x2F)=0x30")
	assert.Contains(t, run("state"), "CONTROL1")
	assert.Contains(t, run("init"), "initialized")
	assert.Contains(t, run("help"), "Commands")
	assert.Contains(t, run("bogus"), "Unknown command")
	assert.Empty(t, run("   "))

	assert.True(t, c.Exec("quit"))
}

func TestRegisterDebugActions(t *testing.T) {
	m, d := newTestManager(t, [3]float64{})
	s := &RegisterDebugSession{mgr: m}

	resp := s.handle(RegisterCmd{Action: "get_map"}).(RegisterResponse)
	assert.Equal(t, "register_map", resp.Type)
	assert.NotEmpty(t, resp.RegisterMap)

	resp = s.handle(RegisterCmd{Action: "read", Address: "0x2F"}).(RegisterResponse)
	assert.Equal(t, "0x30", resp.Value)

	resp = s.handle(RegisterCmd{Action: "read", Address: "nope"}).(RegisterResponse)
	assert.Equal(t, "error", resp.Type)

	resp = s.handle(RegisterCmd{Action: "read_all"}).(RegisterResponse)
	assert.Len(t, resp.Registers, len(mmc5983.ReadableRegisters))
	assert.Equal(t, "0x30", resp.Registers["0x2F"])

	resp = s.handle(RegisterCmd{Action: "set_bandwidth", Bandwidth: 200}).(RegisterResponse)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, byte(mmc5983.BW200Hz), d.Control(mmc5983.RegControl1))

	resp = s.handle(RegisterCmd{Action: "pulse", Pulse: "reset"}).(RegisterResponse)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, -1, d.Polarity())

	resp = s.handle(RegisterCmd{Action: "calibrate"}).(RegisterResponse)
	assert.Equal(t, "offset 131372 130952 131132", resp.Message)

	resp = s.handle(RegisterCmd{Action: "continuous", Rate: 20}).(RegisterResponse)
	assert.Equal(t, sensors.ModeContinuous, resp.Mode)
	assert.True(t, d.Continuous())

	resp = s.handle(RegisterCmd{Action: "state"}).(RegisterResponse)
	require.NotNil(t, resp.State)
	assert.Equal(t, sensors.ModeContinuous, resp.State.Mode)
	assert.Equal(t, int32(131372), resp.State.OffsetX)

	raw := s.handle(RegisterCmd{Action: "export_config"}).(map[string]any)
	assert.Equal(t, "export_config", raw["type"])
	var file RegisterConfigFile
	require.NoError(t, yaml.Unmarshal([]byte(raw["config"].(string)), &file))
	assert.Equal(t, "mmc5983ma", file.Device)
	assert.Equal(t, "0x30", file.Registers["0x2F"])
	assert.Equal(t, sensors.ModeContinuous, file.State.Mode)

	resp = s.handle(RegisterCmd{Action: "oneshot"}).(RegisterResponse)
	assert.Equal(t, sensors.ModeOneShot, resp.Mode)

	resp = s.handle(RegisterCmd{Action: "init"}).(RegisterResponse)
	assert.Equal(t, "initialized", resp.Status)

	for _, cmd := range []RegisterCmd{
		{},
		{Action: "dance"},
		{Action: "set_bandwidth", Bandwidth: 123},
		{Action: "continuous", Rate: 3},
		{Action: "continuous", Rate: 10, Period: 7},
		{Action: "pulse", Pulse: "zap"},
	} {
		resp := s.handle(cmd).(RegisterResponse)
		assert.Equal(t, "error", resp.Type, "%+v", cmd)
	}
}

func TestCalibrationReport(t *testing.T) {
	m, d := newTestManager(t, [3]float64{0.1, -0.2, 0.3})
	rep, err := RunCalibration(m, 4)
	require.NoError(t, err)

	off := d.Offset()
	assert.Len(t, rep.Offsets, 4)
	assert.Equal(t, Vec3{X: float64(off.X), Y: float64(off.Y), Z: float64(off.Z)}, rep.Mean)
	assert.Equal(t, Vec3{}, rep.StdDev)
	assert.Equal(t, 1.0, rep.Confidence)
	assert.InDelta(t, 0.1, rep.Residual.X, 1e-4)
	assert.InDelta(t, -0.2, rep.Residual.Y, 1e-4)
	assert.InDelta(t, 0.3, rep.Residual.Z, 1e-4)

	var buf bytes.Buffer
	require.NoError(t, WriteCalibration(&buf, rep))
	var back CalibrationReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, rep.Mean, back.Mean)

	_, err = RunCalibration(m, 0)
	assert.Error(t, err)
}

func TestStatsAndConfidence(t *testing.T) {
	mean, std := computeStats([]Vec3{{X: 1, Y: 2, Z: 3}, {X: 3, Y: 2, Z: 1}})
	assert.Equal(t, Vec3{X: 2, Y: 2, Z: 2}, mean)
	assert.Equal(t, Vec3{X: 1, Y: 0, Z: 1}, std)

	assert.Equal(t, 1.0, repeatabilityConfidence(Vec3{X: 1}))
	assert.InDelta(t, 0.5, repeatabilityConfidence(Vec3{Y: 11}), 1e-9)
	assert.Equal(t, confFloor, repeatabilityConfidence(Vec3{Z: 500}))
}

func TestSamplerTemperatureCadence(t *testing.T) {
	m, _ := newTestManager(t, [3]float64{})
	s := &sampler{mgr: m, tempEvery: 3}
	var withTemp []bool
	for i := 0; i < 7; i++ {
		sample, err := s.next()
		require.NoError(t, err)
		withTemp = append(withTemp, sample.TempC != nil)
	}
	assert.Equal(t, []bool{true, false, false, true, false, false, true}, withTemp)
}

func TestClientID(t *testing.T) {
	a, b := clientID("mmc5983-web"), clientID("mmc5983-web")
	assert.True(t, strings.HasPrefix(a, "mmc5983-web-"))
	assert.Len(t, a, len("mmc5983-web-")+8)
	assert.NotEqual(t, a, b)
}

func testSample() mag.Sample {
	raw := mmc5983.MagneticField{X: mmc5983.MidScale, Y: mmc5983.MidScale - 4096, Z: mmc5983.MidScale}
	return mag.NewSample(time.Unix(1700000000, 0).UTC(), sensors.ModeOneShot, raw, mmc5983.DefaultOffset).WithTemperature(100)
}

func TestLatestSampleHandler(t *testing.T) {
	l := &latestSample{}

	rec := httptest.NewRecorder()
	l.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/field", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	l.store(testSample())
	rec = httptest.NewRecorder()
	l.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/field", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got mag.Sample
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.InDelta(t, -0.25, got.Y, 1e-12)
	assert.InDelta(t, 270, got.Heading, 1e-9)
}

func TestPrintSample(t *testing.T) {
	var buf bytes.Buffer
	printSample(&buf, testSample())
	line := buf.String()
	assert.Contains(t, line, "oneshot")
	assert.Contains(t, line, "Y=-0.25000")
	assert.Contains(t, line, "HDG=270.0° W")
	assert.Contains(t, line, "T=  5.0°C")
}

func TestRenderField(t *testing.T) {
	lit := func(img *image1bit.VerticalLSB) int {
		n := 0
		for _, b := range img.Pix {
			for ; b != 0; b &= b - 1 {
				n++
			}
		}
		return n
	}
	waiting := renderField(mag.Sample{}, false, nil)
	s := testSample()
	full := renderField(s, true, s.TempC)
	assert.Equal(t, 128*64/8, len(full.Pix))
	assert.Greater(t, lit(full), lit(waiting))
	assert.Greater(t, lit(renderSplash()), 0)
}
