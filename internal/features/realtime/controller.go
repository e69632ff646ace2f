package realtime

import (
	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

type RealtimeController struct {
	Hub    *Hub
	logger *zap.Logger
}

func NewRealtimeController(hub *Hub, logger *zap.Logger) *RealtimeController {
	return &RealtimeController{
		Hub:    hub,
		logger: logger,
	}
}

// HandleConnection subscribes the connection to one business's events and
// holds it open until the peer disconnects.
func (ctrl *RealtimeController) HandleConnection(conn *websocket.Conn) {
	businessID := conn.Params("businessId")
	if businessID == "" {
		conn.Close()
		return
	}

	c := &client{conn: conn}
	ctrl.Hub.subscribe(businessID, c)
	ctrl.logger.Debug("websocket subscriber connected", zap.String("business_id", businessID))

	defer func() {
		ctrl.Hub.unsubscribe(businessID, c)
		conn.Close()
		ctrl.logger.Debug("websocket subscriber disconnected", zap.String("business_id", businessID))
	}()

	// Inbound messages are ignored; the read loop only detects closure.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
