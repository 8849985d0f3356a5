package controllers

import (
	"net/http"

	"nutrilens/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type RealtimeController struct {
	Hub *services.EventHub
}

func NewRealtimeController(hub *services.EventHub) *RealtimeController {
	return &RealtimeController{Hub: hub}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // tighten behind a proxy if needed
}

// EventsWS upgrades the request and streams meal-processing events until
// the client disconnects. The hub's writer goroutine owns all outbound
// frames, including keepalive pings; this handler only reads.
func (rc *RealtimeController) EventsWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	cl := services.NewWSClient(c.GetUint("userID"), conn)
	rc.Hub.Register(cl)
	cl.ReadLoop()
	rc.Hub.Unregister(cl)
}
