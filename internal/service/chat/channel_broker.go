package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"barmeet_server/internal/dao/mysql/repository"
	myredis "barmeet_server/internal/dao/redis"
	"barmeet_server/internal/dto/request"
	"barmeet_server/internal/dto/respond"
	"barmeet_server/internal/model"
	"barmeet_server/pkg/constants"
	"barmeet_server/pkg/util/snowflake"
)

// ChannelBroker is the in-process broker. Connections live in a sync.Map
// keyed by user uuid; the group index maps each group to its member
// connections so a broadcast never touches anyone outside the group.
type ChannelBroker struct {
	Clients sync.Map // userUuid -> *UserConn

	groupMu sync.RWMutex
	groups  map[string]map[string]*UserConn // groupUuid -> userUuid -> conn

	Transmit chan []byte
	Login    chan *UserConn
	Logout   chan *UserConn

	messageRepo     repository.MessageRepository
	participantRepo repository.ParticipantRepository
	cacheService    myredis.AsyncCacheService

	closeOnce sync.Once
}

func NewChannelBroker(
	messageRepo repository.MessageRepository,
	participantRepo repository.ParticipantRepository,
	cacheService myredis.AsyncCacheService,
) *ChannelBroker {
	return &ChannelBroker{
		groups:          make(map[string]map[string]*UserConn),
		Transmit:        make(chan []byte, constants.CHANNEL_SIZE),
		Login:           make(chan *UserConn, constants.CHANNEL_SIZE),
		Logout:          make(chan *UserConn, constants.CHANNEL_SIZE),
		messageRepo:     messageRepo,
		participantRepo: participantRepo,
		cacheService:    cacheService,
	}
}

// Start runs the login/logout/message loop until Close.
func (b *ChannelBroker) Start() {
	for {
		select {
		case client, ok := <-b.Login:
			if !ok {
				return
			}
			if client == nil {
				continue
			}
			b.Clients.Store(client.UserUuid, client)
			b.addToGroup(client)
			b.touchPresence(client.GroupUuid, client.UserUuid)
			zap.L().Info("member connected",
				zap.String("user", client.UserUuid),
				zap.String("group", client.GroupUuid))

		case client, ok := <-b.Logout:
			if !ok {
				return
			}
			if client == nil {
				continue
			}
			b.Clients.Delete(client.UserUuid)
			b.removeFromGroup(client)
			b.dropPresence(client.GroupUuid, client.UserUuid)
			zap.L().Info("member disconnected",
				zap.String("user", client.UserUuid),
				zap.String("group", client.GroupUuid))

		case data, ok := <-b.Transmit:
			if !ok {
				return
			}
			var req request.ChatMessageRequest
			if err := json.Unmarshal(data, &req); err != nil {
				zap.L().Error(err.Error())
				continue
			}
			b.handleChatMessage(req)
		}
	}
}

// handleChatMessage persists one member message and fans it out to the
// group, sender included so their own view stays in sync.
func (b *ChannelBroker) handleChatMessage(req request.ChatMessageRequest) {
	message := model.Message{
		Uuid:      snowflake.GenerateID(),
		GroupUuid: req.GroupUuid,
		Type:      model.MessageTypeText,
		Content:   req.Content,
		SendId:    req.SendId,
		Status:    model.MessageUnsent,
	}
	if err := b.messageRepo.Create(&message); err != nil {
		zap.L().Error("message persist failed", zap.Error(err))
		return
	}

	b.broadcast(&message)
	b.touchPresence(req.GroupUuid, req.SendId)

	// Chatting counts as activity; a talkative member never gets swept.
	if b.participantRepo != nil {
		groupUuid, sendId := req.GroupUuid, req.SendId
		b.submitAsync(func() {
			if err := b.participantRepo.TouchHeartbeat(groupUuid, sendId, time.Now()); err != nil {
				zap.L().Error(err.Error())
			}
		})
	}
}

// System persists and broadcasts a lifecycle announcement. Callable from any
// goroutine; it does not pass through the Transmit loop.
func (b *ChannelBroker) System(groupUuid, content string) {
	message := model.Message{
		Uuid:      snowflake.GenerateID(),
		GroupUuid: groupUuid,
		Type:      model.MessageTypeSystem,
		Content:   content,
		SendId:    "",
		Status:    model.MessageUnsent,
	}
	if err := b.messageRepo.Create(&message); err != nil {
		zap.L().Error("system message persist failed", zap.Error(err))
		return
	}
	b.broadcast(&message)
}

// broadcast fans one stored message out to every live connection of its
// group. Members without a live connection catch up from message history.
func (b *ChannelBroker) broadcast(message *model.Message) {
	rsp := respond.GroupMessageRespond{
		Uuid:      message.Uuid,
		GroupUuid: message.GroupUuid,
		SendId:    message.SendId,
		Type:      message.Type,
		Content:   message.Content,
		CreatedAt: message.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	jsonMessage, err := json.Marshal(rsp)
	if err != nil {
		zap.L().Error(err.Error())
		return
	}
	back := &MessageBack{Message: jsonMessage, Uuid: message.Uuid}

	b.groupMu.RLock()
	conns := make([]*UserConn, 0, len(b.groups[message.GroupUuid]))
	for _, conn := range b.groups[message.GroupUuid] {
		conns = append(conns, conn)
	}
	b.groupMu.RUnlock()

	for _, conn := range conns {
		select {
		case conn.SendBack <- back:
		default:
			// A client that stopped reading does not stall the group.
			zap.L().Warn("send buffer full, dropping frame",
				zap.String("user", conn.UserUuid))
		}
	}

	// Append to the cached history so the next history read skips the DB.
	if b.cacheService != nil {
		groupUuid := message.GroupUuid
		b.submitAsync(func() {
			key := "group_messagelist_" + groupUuid
			rspString, err := b.cacheService.GetOrError(context.Background(), key)
			if err != nil {
				return
			}
			var list []respond.GroupMessageRespond
			if err := json.Unmarshal([]byte(rspString), &list); err != nil {
				return
			}
			list = append(list, rsp)
			if rspByte, err := json.Marshal(list); err == nil {
				_ = b.cacheService.Set(context.Background(), key, string(rspByte), time.Minute*constants.REDIS_TIMEOUT)
			}
		})
	}
}

// CloseGroup disconnects every member of a dead group and forgets the room.
func (b *ChannelBroker) CloseGroup(groupUuid string) {
	b.groupMu.Lock()
	members := b.groups[groupUuid]
	delete(b.groups, groupUuid)
	b.groupMu.Unlock()

	for _, conn := range members {
		b.Clients.Delete(conn.UserUuid)
		if conn.Conn != nil {
			_ = conn.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "group closed"))
			if err := conn.Conn.Close(); err != nil {
				zap.L().Error(err.Error())
			}
		}
		conn.closeChannels()
	}

	if b.cacheService != nil {
		b.submitAsync(func() {
			if err := b.cacheService.Delete(context.Background(), "presence_"+groupUuid); err != nil {
				zap.L().Error(err.Error())
			}
		})
	}
}

// MarkSent flips the stored message status after a successful write.
func (b *ChannelBroker) MarkSent(uuid int64) {
	if err := b.messageRepo.UpdateStatus(uuid, model.MessageSent); err != nil {
		zap.L().Error(err.Error())
	}
}

// OnlineMembers returns the user uuids currently present in a group, read
// from the presence set with the live index as fallback.
func (b *ChannelBroker) OnlineMembers(ctx context.Context, groupUuid string) []string {
	if b.cacheService != nil {
		members, err := b.cacheService.GetSetMembers(ctx, "presence_"+groupUuid)
		if err == nil && len(members) > 0 {
			return members
		}
	}
	b.groupMu.RLock()
	defer b.groupMu.RUnlock()
	out := make([]string, 0, len(b.groups[groupUuid]))
	for userUuid := range b.groups[groupUuid] {
		out = append(out, userUuid)
	}
	return out
}

// Publish implements MessageBroker.
func (b *ChannelBroker) Publish(ctx context.Context, msg []byte) error {
	select {
	case b.Transmit <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterClient implements MessageBroker.
func (b *ChannelBroker) RegisterClient(client *UserConn) {
	b.Login <- client
}

// UnregisterClient implements MessageBroker.
func (b *ChannelBroker) UnregisterClient(client *UserConn) {
	b.Logout <- client
}

// GetClient implements MessageBroker.
func (b *ChannelBroker) GetClient(userUuid string) *UserConn {
	value, ok := b.Clients.Load(userUuid)
	if !ok {
		return nil
	}
	return value.(*UserConn)
}

// Close shuts the broker channels once.
func (b *ChannelBroker) Close() {
	b.closeOnce.Do(func() {
		close(b.Login)
		close(b.Logout)
		close(b.Transmit)
	})
}

func (b *ChannelBroker) addToGroup(client *UserConn) {
	b.groupMu.Lock()
	defer b.groupMu.Unlock()
	room, ok := b.groups[client.GroupUuid]
	if !ok {
		room = make(map[string]*UserConn)
		b.groups[client.GroupUuid] = room
	}
	room[client.UserUuid] = client
}

func (b *ChannelBroker) removeFromGroup(client *UserConn) {
	b.groupMu.Lock()
	defer b.groupMu.Unlock()
	room, ok := b.groups[client.GroupUuid]
	if !ok {
		return
	}
	if room[client.UserUuid] == client {
		delete(room, client.UserUuid)
	}
	if len(room) == 0 {
		delete(b.groups, client.GroupUuid)
	}
}

func (b *ChannelBroker) touchPresence(groupUuid, userUuid string) {
	if b.cacheService == nil {
		return
	}
	b.submitAsync(func() {
		key := "presence_" + groupUuid
		if err := b.cacheService.AddToSet(context.Background(), key, constants.PRESENCE_TTL, userUuid); err != nil {
			zap.L().Error(err.Error())
		}
	})
}

func (b *ChannelBroker) dropPresence(groupUuid, userUuid string) {
	if b.cacheService == nil {
		return
	}
	b.submitAsync(func() {
		if err := b.cacheService.RemoveFromSet(context.Background(), "presence_"+groupUuid, userUuid); err != nil {
			zap.L().Error(err.Error())
		}
	})
}

// submitAsync runs fn on the cache worker pool when available, inline
// otherwise (tests run without redis).
func (b *ChannelBroker) submitAsync(fn func()) {
	if b.cacheService != nil {
		b.cacheService.SubmitTask(fn)
		return
	}
	fn()
}
