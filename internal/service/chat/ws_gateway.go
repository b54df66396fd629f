package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"barmeet_server/internal/dto/request"
	"barmeet_server/pkg/constants"
)

// UserConn is one member's websocket connection, pinned to the single group
// they belong to. The pinning is what makes channel isolation enforceable:
// the read loop drops any frame claiming a different group.
type UserConn struct {
	Conn      *websocket.Conn
	UserUuid  string
	GroupUuid string
	SendBack  chan *MessageBack

	broker    MessageBroker
	closeOnce sync.Once
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Read pumps inbound frames into the broker until the connection dies.
func (c *UserConn) Read() {
	defer func() {
		c.broker.UnregisterClient(c)
		_ = c.Conn.Close()
	}()
	for {
		_, jsonMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Error(err.Error())
			}
			return
		}

		var req request.ChatMessageRequest
		if err := json.Unmarshal(jsonMessage, &req); err != nil {
			zap.L().Error(err.Error())
			continue
		}
		// The connection's identity wins over whatever the frame claims.
		if req.GroupUuid != c.GroupUuid || req.SendId != c.UserUuid {
			zap.L().Warn("rejected cross-group frame",
				zap.String("user", c.UserUuid),
				zap.String("conn_group", c.GroupUuid),
				zap.String("frame_group", req.GroupUuid))
			continue
		}

		if err := c.broker.Publish(context.Background(), jsonMessage); err != nil {
			zap.L().Error(err.Error())
		}
	}
}

// Write drains SendBack to the websocket, marking each message delivered.
func (c *UserConn) Write() {
	for messageBack := range c.SendBack {
		if err := c.Conn.WriteMessage(websocket.TextMessage, messageBack.Message); err != nil {
			zap.L().Error(err.Error())
			return
		}
		c.broker.MarkSent(messageBack.Uuid)
	}
}

func (c *UserConn) closeChannels() {
	c.closeOnce.Do(func() {
		close(c.SendBack)
	})
}

// NewClientInit upgrades the request and starts the read/write goroutines.
// The caller has already verified that userUuid is a member of groupUuid.
func NewClientInit(c *gin.Context, broker MessageBroker, userUuid, groupUuid string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.L().Error(err.Error())
		return
	}
	client := &UserConn{
		Conn:      conn,
		UserUuid:  userUuid,
		GroupUuid: groupUuid,
		SendBack:  make(chan *MessageBack, constants.CHANNEL_SIZE),
		broker:    broker,
	}
	broker.RegisterClient(client)
	go client.Read()
	go client.Write()
	zap.L().Info("ws connected", zap.String("user", userUuid), zap.String("group", groupUuid))
}

// ClientLogout tears down a user's connection, if one is live.
func ClientLogout(broker MessageBroker, userUuid string) {
	client := broker.GetClient(userUuid)
	if client == nil {
		return
	}
	broker.UnregisterClient(client)
	if err := client.Conn.Close(); err != nil {
		zap.L().Error(err.Error())
	}
	client.closeChannels()
}
