package display

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/AvengeMedia/dankdisplay/internal/log"
	"github.com/AvengeMedia/dankdisplay/internal/server/models"
)

type Request struct {
	ID     interface{}            `json:"id,omitempty"`
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params,omitempty"`
}

type SuccessResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type IdentityResult struct {
	ID           DisplayID `json:"id"`
	EffectiveID  DisplayID `json:"effectiveId"`
	PersistentID string    `json:"persistentId"`
}

func HandleRequest(conn net.Conn, req Request, manager *Manager) {
	switch req.Method {
	case "display.list":
		handleList(conn, req, manager)
	case "display.get":
		handleGet(conn, req, manager)
	case "display.set":
		handleSet(conn, req, manager)
	case "display.identity":
		handleIdentity(conn, req, manager)
	case "display.hardware.disable":
		handleHardwareDisable(conn, req, manager, true)
	case "display.hardware.enable":
		handleHardwareDisable(conn, req, manager, false)
	case "display.interaction.begin":
		manager.Poller().BeginInteraction()
		models.Respond(conn, req.ID, SuccessResult{Success: true, Message: "interaction started"})
	case "display.interaction.end":
		manager.Poller().EndInteraction()
		models.Respond(conn, req.ID, SuccessResult{Success: true, Message: "interaction ended"})
	case "display.subscribe":
		handleSubscribe(conn, req, manager)
	case "display.interference.subscribe":
		handleInterferenceSubscribe(conn, req, manager)
	default:
		models.RespondError(conn, req.ID, fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func paramDisplayID(req Request) (DisplayID, bool) {
	raw, ok := req.Params["display"].(float64)
	if !ok {
		return 0, false
	}
	return DisplayID(raw), true
}

func paramCommand(req Request) (Command, bool) {
	raw, ok := req.Params["command"].(string)
	if !ok {
		// Most clients only ever touch brightness.
		return CmdBrightness, true
	}
	cmd := Command(raw)
	switch cmd {
	case CmdBrightness, CmdContrast, CmdVolume:
		return cmd, true
	}
	return "", false
}

func handleList(conn net.Conn, req Request, manager *Manager) {
	state := manager.GetState()
	models.Respond(conn, req.ID, state)
}

func handleGet(conn net.Conn, req Request, manager *Manager) {
	id, ok := paramDisplayID(req)
	if !ok {
		models.RespondError(conn, req.ID, "missing or invalid 'display' parameter")
		return
	}
	cmd, ok := paramCommand(req)
	if !ok {
		models.RespondError(conn, req.ID, "invalid 'command' parameter")
		return
	}

	value, err := manager.CurrentValue(id, cmd)
	if err != nil {
		models.RespondError(conn, req.ID, err.Error())
		return
	}
	models.Respond(conn, req.ID, map[string]float64{"value": value})
}

func handleSet(conn net.Conn, req Request, manager *Manager) {
	id, ok := paramDisplayID(req)
	if !ok {
		models.RespondError(conn, req.ID, "missing or invalid 'display' parameter")
		return
	}
	cmd, ok := paramCommand(req)
	if !ok {
		models.RespondError(conn, req.ID, "invalid 'command' parameter")
		return
	}
	value, ok := req.Params["value"].(float64)
	if !ok {
		models.RespondError(conn, req.ID, "missing or invalid 'value' parameter")
		return
	}

	smooth := true
	if smoothParam, ok := req.Params["smooth"].(bool); ok {
		smooth = smoothParam
	}
	slow := false
	if slowParam, ok := req.Params["slow"].(bool); ok {
		slow = slowParam
	}

	if err := manager.SetValue(id, cmd, value, smooth, slow); err != nil {
		log.Warnf("handleSet: failed to set %s on display %d: %v", cmd, id, err)
		models.RespondError(conn, req.ID, err.Error())
		return
	}
	models.Respond(conn, req.ID, SuccessResult{Success: true, Message: "value set"})
}

func handleIdentity(conn net.Conn, req Request, manager *Manager) {
	id, ok := paramDisplayID(req)
	if !ok {
		models.RespondError(conn, req.ID, "missing or invalid 'display' parameter")
		return
	}

	pid, err := manager.PersistentIdentifier(id)
	if err != nil {
		models.RespondError(conn, req.ID, err.Error())
		return
	}
	models.Respond(conn, req.ID, IdentityResult{
		ID:           id,
		EffectiveID:  manager.EffectiveIdentifier(id),
		PersistentID: pid,
	})
}

func handleHardwareDisable(conn net.Conn, req Request, manager *Manager, disabled bool) {
	id, ok := paramDisplayID(req)
	if !ok {
		models.RespondError(conn, req.ID, "missing or invalid 'display' parameter")
		return
	}

	if err := manager.SetHardwareDisabled(id, disabled); err != nil {
		models.RespondError(conn, req.ID, err.Error())
		return
	}
	msg := "hardware control enabled"
	if disabled {
		msg = "hardware control disabled"
	}
	models.Respond(conn, req.ID, SuccessResult{Success: true, Message: msg})
}

func handleSubscribe(conn net.Conn, req Request, manager *Manager) {
	clientID := uuid.NewString()
	stateChan := manager.Poller().Subscribe(clientID)
	defer manager.Poller().Unsubscribe(clientID)

	initial := manager.GetState()
	if err := json.NewEncoder(conn).Encode(models.Response[State]{
		ID:     req.ID,
		Result: &initial,
	}); err != nil {
		return
	}

	for state := range stateChan {
		if err := json.NewEncoder(conn).Encode(models.Response[State]{
			Result: &state,
		}); err != nil {
			return
		}
	}
}

type InterferenceEvent struct {
	PersistentID string `json:"persistentId"`
}

func handleInterferenceSubscribe(conn net.Conn, req Request, manager *Manager) {
	clientID := uuid.NewString()
	events := manager.SubscribeInterference(clientID)
	defer manager.UnsubscribeInterference(clientID)

	ack := SuccessResult{Success: true, Message: "subscribed"}
	if err := json.NewEncoder(conn).Encode(models.Response[SuccessResult]{
		ID:     req.ID,
		Result: &ack,
	}); err != nil {
		return
	}

	for pid := range events {
		event := InterferenceEvent{PersistentID: pid}
		if err := json.NewEncoder(conn).Encode(models.Response[InterferenceEvent]{
			Result: &event,
		}); err != nil {
			return
		}
	}
}
