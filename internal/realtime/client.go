package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/neurometric/backend/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ReportHandler consumes report_high_stress events from any connection.
type ReportHandler interface {
	HandleReport(ctx context.Context, senderID string, payload json.RawMessage)
}

// Classifier produces a stress reading from one decoded video frame. Treated
// as an opaque collaborator; the bundled stub lives in internal/inference.
type Classifier interface {
	Classify(frame []byte) (models.StressUpdate, error)
}

// Client represents a single WebSocket connection.
type Client struct {
	ID       string
	UserID   string
	UserName string
	Role     string
	JoinedAt time.Time

	hub        *Hub
	reports    ReportHandler
	classifier Classifier
	conn       *websocket.Conn
	send       chan WSMessage
	logger     *zap.Logger
}

// ServeWs handles the WebSocket upgrade and runs the client loop.
func ServeWs(hub *Hub, logger *zap.Logger, jwtValidate func(token string) (userID, name, role string, err error), reports ReportHandler, classifier Classifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		userID, name, role, err := jwtValidate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:         uuid.New().String(),
			UserID:     userID,
			UserName:   name,
			Role:       role,
			JoinedAt:   time.Now(),
			hub:        hub,
			reports:    reports,
			classifier: classifier,
			conn:       conn,
			send:       make(chan WSMessage, 256),
			logger:     logger,
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(1 << 20) // frames arrive base64-encoded
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case models.EventReportHighStress:
			if c.reports != nil {
				// Awaited so per-connection receipt order holds; the handler
				// never propagates provider failures back here.
				c.reports.HandleReport(context.Background(), c.ID, msg.Data)
			}
		case models.EventVideoFrame:
			c.handleFrame(msg.Data)
		default:
			// ignore
		}
	}
}

// handleFrame decodes a base64 data URL, runs the classifier, and sends the
// resulting stress_update back to this connection only.
func (c *Client) handleFrame(data json.RawMessage) {
	if c.classifier == nil {
		return
	}
	frame, err := decodeFrame(data)
	if err != nil {
		c.logger.Debug("unreadable video frame", zap.String("client_id", c.ID), zap.Error(err))
		return
	}
	update, err := c.classifier.Classify(frame)
	if err != nil {
		c.logger.Warn("frame classification failed", zap.String("client_id", c.ID), zap.Error(err))
		return
	}
	c.hub.SendToClient(c.ID, models.EventStressUpdate, update)
}

func decodeFrame(data json.RawMessage) ([]byte, error) {
	var dataURL string
	if err := json.Unmarshal(data, &dataURL); err != nil {
		return nil, err
	}
	// "data:image/jpeg;base64,<payload>"
	if i := strings.IndexByte(dataURL, ','); i >= 0 {
		dataURL = dataURL[i+1:]
	}
	return base64.StdEncoding.DecodeString(dataURL)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
