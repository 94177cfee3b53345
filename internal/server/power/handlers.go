package power

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/AvengeMedia/dankdisplay/internal/server/models"
)

type Request struct {
	ID     interface{}            `json:"id,omitempty"`
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params,omitempty"`
}

func HandleRequest(conn net.Conn, req Request, monitor *Monitor) {
	switch req.Method {
	case "power.getState":
		models.Respond(conn, req.ID, monitor.GetState())
	case "power.subscribe":
		handleSubscribe(conn, req, monitor)
	default:
		models.RespondError(conn, req.ID, fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func handleSubscribe(conn net.Conn, req Request, monitor *Monitor) {
	clientID := uuid.NewString()
	stateChan := monitor.Subscribe(clientID)
	defer monitor.Unsubscribe(clientID)

	initial := monitor.GetState()
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
