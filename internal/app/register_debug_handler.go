// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/mmc5983/internal/config"
	"github.com/relabs-tech/mmc5983/internal/sensors"
	"github.com/relabs-tech/mmc5983/mmc5983"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// RegisterDebugSession holds WebSocket connection state for register debugging
type RegisterDebugSession struct {
	Conn *websocket.Conn
	mgr  *sensors.MagManager
}

// RegisterCmd is any message sent by the debug page. Fields not used by an
// action are left empty.
type RegisterCmd struct {
	Action    string `json:"action"`
	Address   string `json:"addr,omitempty"`
	Bandwidth int    `json:"bandwidth,omitempty"` // Hz
	Pulse     string `json:"pulse,omitempty"`     // "set", "reset", "selftest+", "selftest-"
	Rate      int    `json:"rate,omitempty"`      // Hz
	Period    int    `json:"period,omitempty"`    // samples, 0 = no automatic SET/RESET
}

// Response types
type RegisterResponse struct {
	Type        string                 `json:"type"` // "register_data", "register_map", "state", "status", "error"
	Address     string                 `json:"addr,omitempty"`
	Value       string                 `json:"value,omitempty"`
	Registers   map[string]string      `json:"registers,omitempty"` // for bulk read
	Timestamp   string                 `json:"timestamp,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Status      string                 `json:"status,omitempty"`
	Mode        string                 `json:"mode,omitempty"`
	State       *StateReport           `json:"state,omitempty"`
	RegisterMap []sensors.RegisterInfo `json:"register_map,omitempty"`
}

// StateReport is the driver shadow as shown on the debug page.
type StateReport struct {
	Control0 string `json:"control0" yaml:"control0"`
	Control1 string `json:"control1" yaml:"control1"`
	Control2 string `json:"control2" yaml:"control2"`
	Control3 string `json:"control3" yaml:"control3"`
	OffsetX  int32  `json:"offset_x" yaml:"offset_x"`
	OffsetY  int32  `json:"offset_y" yaml:"offset_y"`
	OffsetZ  int32  `json:"offset_z" yaml:"offset_z"`
	Mode     string `json:"mode" yaml:"mode"`
}

// RegisterConfigFile is the exported snapshot.
type RegisterConfigFile struct {
	Version   int               `yaml:"version"`
	Device    string            `yaml:"device"`
	Timestamp string            `yaml:"timestamp"`
	Registers map[string]string `yaml:"registers"` // hex address -> hex value
	State     StateReport       `yaml:"state"`
}

// HandleRegisterDebugWS handles the WebSocket connection for register debugging
func HandleRegisterDebugWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("register_debug: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	session := &RegisterDebugSession{Conn: conn, mgr: sensors.GetMagManager()}

	// Send register map on connection
	if err := session.Conn.WriteJSON(session.registerMap()); err != nil {
		log.Printf("register_debug: error sending register map: %v", err)
		return
	}

	// Message loop
	for {
		var cmd RegisterCmd
		err := conn.ReadJSON(&cmd)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("register_debug: websocket error: %v", err)
			}
			break
		}
		if err := session.Conn.WriteJSON(session.handle(cmd)); err != nil {
			log.Printf("register_debug: write error: %v", err)
			break
		}
	}
}

// handle runs one command and builds the reply.
func (s *RegisterDebugSession) handle(cmd RegisterCmd) any {
	switch cmd.Action {
	case "":
		return errorResponse("missing or invalid action field")
	case "get_map":
		return s.registerMap()
	case "read":
		return s.handleRead(cmd)
	case "read_all":
		return s.handleReadAll()
	case "state":
		return s.handleState()
	case "init":
		return s.status(s.mgr.Reinitialize(), "initialized", "device reinitialized")
	case "set_bandwidth":
		bw, err := mmc5983.BandwidthFromHz(cmd.Bandwidth)
		if err != nil {
			return errorResponse(err.Error())
		}
		return s.status(s.mgr.SetBandwidth(bw), "ok", fmt.Sprintf("bandwidth %s", bw))
	case "pulse":
		return s.status(s.mgr.Pulse(cmd.Pulse), "ok", cmd.Pulse+" pulse sent")
	case "calibrate":
		off, err := s.mgr.Calibrate()
		return s.status(err, "ok", fmt.Sprintf("offset %d %d %d", off.X, off.Y, off.Z))
	case "continuous":
		return s.handleContinuous(cmd)
	case "oneshot":
		return s.status(s.mgr.OneShot(), "ok", "one-shot mode")
	case "export_config":
		return s.handleExportConfig()
	default:
		return errorResponse(fmt.Sprintf("unknown action: %s", cmd.Action))
	}
}

func (s *RegisterDebugSession) handleRead(cmd RegisterCmd) RegisterResponse {
	if cmd.Address == "" {
		return errorResponse("missing addr field")
	}

	// Parse hex address
	var addrByte byte
	if _, err := fmt.Sscanf(cmd.Address, "0x%X", &addrByte); err != nil {
		return errorResponse(fmt.Sprintf("invalid address format: %s", cmd.Address))
	}

	value, err := s.mgr.ReadRegister(mmc5983.Register(addrByte))
	if err != nil {
		return errorResponse(fmt.Sprintf("read error: %v", err))
	}

	return RegisterResponse{
		Type:      "register_data",
		Address:   cmd.Address,
		Value:     fmt.Sprintf("0x%02X", value),
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func (s *RegisterDebugSession) readAll() (map[string]string, error) {
	regs, err := s.mgr.ReadAllRegisters()
	if err != nil {
		return nil, err
	}
	regMap := make(map[string]string, len(regs))
	for _, rv := range regs {
		regMap[fmt.Sprintf("0x%02X", uint8(rv.Reg))] = fmt.Sprintf("0x%02X", rv.Value)
	}
	return regMap, nil
}

func (s *RegisterDebugSession) handleReadAll() RegisterResponse {
	regMap, err := s.readAll()
	if err != nil {
		return errorResponse(fmt.Sprintf("read all error: %v", err))
	}
	return RegisterResponse{
		Type:      "register_data",
		Registers: regMap,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func (s *RegisterDebugSession) stateReport() (StateReport, error) {
	st, err := s.mgr.State()
	if err != nil {
		return StateReport{}, err
	}
	return StateReport{
		Control0: fmt.Sprintf("0x%02X %s", st.Control0.Bits(), st.Control0),
		Control1: fmt.Sprintf("0x%02X %s", st.Control1.Bits(), st.Control1),
		Control2: fmt.Sprintf("0x%02X %s", st.Control2.Bits(), st.Control2),
		Control3: fmt.Sprintf("0x%02X %s", st.Control3.Bits(), st.Control3),
		OffsetX:  st.Offset.X,
		OffsetY:  st.Offset.Y,
		OffsetZ:  st.Offset.Z,
		Mode:     s.mgr.Mode(),
	}, nil
}

func (s *RegisterDebugSession) handleState() RegisterResponse {
	rep, err := s.stateReport()
	if err != nil {
		return errorResponse(fmt.Sprintf("state error: %v", err))
	}
	return RegisterResponse{Type: "state", State: &rep, Mode: rep.Mode}
}

func (s *RegisterDebugSession) handleContinuous(cmd RegisterCmd) RegisterResponse {
	rate, err := mmc5983.OutputDataRateFromHz(cmd.Rate)
	if err != nil {
		return errorResponse(err.Error())
	}
	cc := mmc5983.ContinuousConfig{Rate: rate}
	if cmd.Period != 0 {
		if cc.Period, err = mmc5983.SetResetPeriodFromSamples(cmd.Period); err != nil {
			return errorResponse(err.Error())
		}
		cc.AutoSetReset = true
	}
	if err := s.mgr.Continuous(cc); err != nil {
		return errorResponse(err.Error())
	}
	mc, _ := s.mgr.ModeConfig()
	return RegisterResponse{Type: "status", Status: "ok", Mode: sensors.ModeContinuous, Message: mc.String()}
}

func (s *RegisterDebugSession) handleExportConfig() any {
	regMap, err := s.readAll()
	if err != nil {
		return errorResponse(fmt.Sprintf("export error: %v", err))
	}
	rep, err := s.stateReport()
	if err != nil {
		return errorResponse(fmt.Sprintf("export error: %v", err))
	}

	out, err := yaml.Marshal(RegisterConfigFile{
		Version:   1,
		Device:    "mmc5983ma",
		Timestamp: time.Now().Format(time.RFC3339),
		Registers: regMap,
		State:     rep,
	})
	if err != nil {
		return errorResponse(fmt.Sprintf("export error: %v", err))
	}

	// Send as download
	return map[string]any{
		"type":     "export_config",
		"message":  "config exported",
		"config":   string(out),
		"filename": fmt.Sprintf("mmc5983_%s_registers.yaml", time.Now().Format("20060102_150405")),
	}
}

func (s *RegisterDebugSession) registerMap() RegisterResponse {
	return RegisterResponse{
		Type:        "register_map",
		RegisterMap: s.mgr.GetRegisterMap(),
	}
}

func (s *RegisterDebugSession) status(err error, status, msg string) RegisterResponse {
	if err != nil {
		return errorResponse(err.Error())
	}
	return RegisterResponse{Type: "status", Status: status, Mode: s.mgr.Mode(), Message: msg}
}

func errorResponse(message string) RegisterResponse {
	return RegisterResponse{
		Type:    "error",
		Message: message,
	}
}

// HandleFieldData serves a fresh sample via REST API.
// Query parameter: ?temp=1 adds a temperature reading.
func HandleFieldData(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	s, err := sensors.GetMagManager().ReadSample(r.URL.Query().Get("temp") == "1")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	json.NewEncoder(w).Encode(s)
}

// RegisterDebugAddr is the listen address from the configuration.
func RegisterDebugAddr() string {
	return fmt.Sprintf(":%d", config.Get().RegisterDebugPort)
}
