package server

import (
	"fmt"
	"net"
	"strings"

	"github.com/AvengeMedia/dankdisplay/internal/log"
	"github.com/AvengeMedia/dankdisplay/internal/server/display"
	"github.com/AvengeMedia/dankdisplay/internal/server/models"
	"github.com/AvengeMedia/dankdisplay/internal/server/power"
)

func (s *Server) routeRequest(conn net.Conn, req models.Request) {
	log.Debugf("API Request: method=%s id=%v", req.Method, req.ID)

	if strings.HasPrefix(req.Method, "display.") {
		if s.displayManager == nil {
			models.RespondError(conn, req.ID, "display manager not initialized")
			return
		}
		dispReq := display.Request{
			ID:     req.ID,
			Method: req.Method,
			Params: req.Params,
		}
		display.HandleRequest(conn, dispReq, s.displayManager)
		return
	}

	if strings.HasPrefix(req.Method, "power.") {
		if s.powerMonitor == nil {
			models.RespondError(conn, req.ID, "power monitor not initialized")
			return
		}
		powerReq := power.Request{
			ID:     req.ID,
			Method: req.Method,
			Params: req.Params,
		}
		power.HandleRequest(conn, powerReq, s.powerMonitor)
		return
	}

	switch req.Method {
	case "ping":
		models.Respond(conn, req.ID, "pong")
	default:
		models.RespondError(conn, req.ID, fmt.Sprintf("unknown method: %s", req.Method))
	}
}
