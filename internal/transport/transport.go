// Package transport routes point-to-point and room-scoped events between
// connected clients. Room membership mirrors conversation participation;
// presence transitions and notification pushes ride on the same channel.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ripple/internal/chat"
	"ripple/internal/common"
	"ripple/internal/config"
	"ripple/internal/dbmysql"
	"ripple/internal/metrics"
	"ripple/internal/notif"
	"ripple/internal/presence"
)

type Transport struct {
	cfg           *config.Config
	registry      *presence.Registry
	conversations chat.ConversationService
	messages      chat.MessageService
	notifs        *notif.Service
	log           *zap.Logger

	mu      sync.RWMutex
	clients map[string]*Client            // connID -> client
	rooms   map[string]map[string]*Client // conversationID -> connID -> client
}

func New(
	cfg *config.Config,
	registry *presence.Registry,
	conversations chat.ConversationService,
	messages chat.MessageService,
	notifs *notif.Service,
	log *zap.Logger,
) *Transport {
	return &Transport{
		cfg:           cfg,
		registry:      registry,
		conversations: conversations,
		messages:      messages,
		notifs:        notifs,
		log:           log,
		clients:       make(map[string]*Client),
		rooms:         make(map[string]map[string]*Client),
	}
}

// HandleFrame dispatches one inbound frame from a connection. Errors are
// pushed back on that connection only; they never tear down the transport.
func (t *Transport) HandleFrame(c *Client, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.sendError(c, common.ValidationError("malformed frame: %v", err))
		return
	}
	metrics.WSEvents.WithLabelValues(frame.Event).Inc()

	ctx := context.Background()

	var err error
	switch frame.Event {
	case EvtUserAuthenticate:
		err = t.handleAuthenticate(ctx, c, frame.Data)
	case EvtConversationJoin:
		err = t.handleJoin(ctx, c, frame.Data)
	case EvtConversationLeave:
		err = t.handleLeave(ctx, c, frame.Data)
	case EvtMessageSend:
		err = t.handleSend(ctx, c, frame.Data)
	case EvtMessageRead:
		err = t.handleRead(ctx, c, frame.Data)
	case EvtTypingStart, EvtTypingStop:
		err = t.handleTyping(ctx, c, frame.Event, frame.Data)
	default:
		err = common.ValidationError("unknown event %q", frame.Event)
	}
	if err != nil {
		t.sendError(c, err)
	}
}

func (t *Transport) handleAuthenticate(_ context.Context, c *Client, data json.RawMessage) error {
	var p AuthenticatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return common.ValidationError("invalid authenticate payload: %v", err)
	}

	userID := p.UserID
	if p.Token != "" {
		claims, err := common.ValidToken(p.Token)
		if err != nil {
			return common.AuthorizationError("invalid connection token")
		}
		if p.UserID != "" && p.UserID != claims.UserID {
			return common.AuthorizationError("token subject does not match userId")
		}
		userID = claims.UserID
	}
	if userID == "" {
		return common.ValidationError("userId is required")
	}

	t.mu.Lock()
	c.UserID = userID
	t.mu.Unlock()

	cameOnline := t.registry.Authenticate(c.ID, userID)
	metrics.OnlineUsers.Set(float64(len(t.registry.ListOnline())))

	if cameOnline {
		t.broadcastAll(EvtUserOnline, PresencePayload{UserID: userID})
	}
	return nil
}

func (t *Transport) handleJoin(ctx context.Context, c *Client, data json.RawMessage) error {
	var p ConversationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return common.ValidationError("invalid join payload: %v", err)
	}
	if err := t.requireUser(c, p.UserID); err != nil {
		return err
	}

	ok, err := t.conversations.IsParticipant(ctx, p.ConversationID, p.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return common.AuthorizationError("user %s is not a participant of conversation %s", p.UserID, p.ConversationID)
	}

	t.mu.Lock()
	room, exists := t.rooms[p.ConversationID]
	if !exists {
		room = make(map[string]*Client)
		t.rooms[p.ConversationID] = room
	}
	room[c.ID] = c
	t.mu.Unlock()

	t.BroadcastToConversation(p.ConversationID, EvtUserJoined, ConversationPayload{
		ConversationID: p.ConversationID,
		UserID:         p.UserID,
	})

	// Opening a conversation implicitly acknowledges everything the other
	// participant sent; they get a confirmation per newly read message.
	markedIDs, err := t.messages.MarkAllRead(ctx, p.ConversationID, p.UserID)
	if err != nil {
		return err
	}
	if len(markedIDs) > 0 {
		other, err := t.conversations.GetOtherParticipant(ctx, p.ConversationID, p.UserID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, messageID := range markedIDs {
			t.BroadcastToUser(other, EvtReadConfirmation, ReadConfirmationPayload{
				MessageID: messageID,
				UserID:    p.UserID,
				ReadAt:    now,
			})
		}
	}
	return nil
}

func (t *Transport) handleLeave(_ context.Context, c *Client, data json.RawMessage) error {
	var p ConversationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return common.ValidationError("invalid leave payload: %v", err)
	}
	if err := t.requireUser(c, p.UserID); err != nil {
		return err
	}

	t.leaveRoom(c, p.ConversationID, p.UserID)
	return nil
}

func (t *Transport) handleSend(ctx context.Context, c *Client, data json.RawMessage) error {
	var p SendPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return common.ValidationError("invalid send payload: %v", err)
	}
	if err := t.requireUser(c, p.SenderID); err != nil {
		return err
	}

	msg, err := t.messages.Send(ctx, chat.SendInput{
		ConversationID: p.ConversationID,
		SenderID:       p.SenderID,
		Type:           common.MessageType(p.MessageType),
		Content:        p.Content,
		ImageRef:       p.ImageID,
		SharedPostID:   p.SharedPostID,
	})
	if err != nil {
		return err
	}

	t.BroadcastToConversation(msg.ConversationID, EvtMessageReceive, messagePayload(msg))

	// Notification creation is a side effect; its failure never fails the
	// send.
	recipient, err := t.conversations.GetOtherParticipant(ctx, msg.ConversationID, msg.SenderID)
	if err != nil {
		t.notifs.ReportFailure(common.NotifDM, err)
		return nil
	}
	preview := previewOf(msg)
	if _, err := t.notifs.DM(ctx, recipient, msg.SenderID, preview, msg.ConversationID, msg.ID); err != nil {
		t.notifs.ReportFailure(common.NotifDM, err)
		return nil
	}
	t.BroadcastToUser(recipient, EvtNotificationNew, NotificationNewPayload{
		Type:           common.NotifDM.String(),
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		MessagePreview: common.Truncate(preview, common.PreviewLength),
	})
	return nil
}

func (t *Transport) handleRead(ctx context.Context, c *Client, data json.RawMessage) error {
	var p ReadPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return common.ValidationError("invalid read payload: %v", err)
	}
	if err := t.requireUser(c, p.UserID); err != nil {
		return err
	}

	marked, err := t.messages.MarkRead(ctx, p.MessageID, p.UserID)
	if err != nil {
		return err
	}
	if !marked {
		return nil
	}

	// The confirmation is routed to the stored message's sender, never to
	// whatever conversation the payload claims.
	msg, err := t.messages.ByID(ctx, p.MessageID, p.UserID)
	if err != nil {
		return err
	}
	t.BroadcastToUser(msg.SenderID, EvtReadConfirmation, ReadConfirmationPayload{
		MessageID: p.MessageID,
		UserID:    p.UserID,
		ReadAt:    time.Now().UTC(),
	})
	return nil
}

func (t *Transport) handleTyping(ctx context.Context, c *Client, event string, data json.RawMessage) error {
	var p TypingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return common.ValidationError("invalid typing payload: %v", err)
	}
	if err := t.requireUser(c, p.UserID); err != nil {
		return err
	}

	// Transient: relayed to the other participant, never persisted.
	other, err := t.conversations.GetOtherParticipant(ctx, p.ConversationID, p.UserID)
	if err != nil {
		return err
	}
	t.BroadcastToUser(other, event, TypingPayload{
		ConversationID: p.ConversationID,
		UserID:         p.UserID,
	})
	return nil
}

// Disconnect tears down a connection: room membership, presence, and the
// offline announcement when it was the user's last connection.
func (t *Transport) Disconnect(c *Client) {
	t.mu.Lock()
	if c.closed {
		t.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	delete(t.clients, c.ID)
	var left []string
	for conversationID, room := range t.rooms {
		if _, ok := room[c.ID]; ok {
			delete(room, c.ID)
			left = append(left, conversationID)
			if len(room) == 0 {
				delete(t.rooms, conversationID)
			}
		}
	}
	userID := c.UserID
	t.mu.Unlock()

	for _, conversationID := range left {
		t.BroadcastToConversation(conversationID, EvtUserLeft, ConversationPayload{
			ConversationID: conversationID,
			UserID:         userID,
		})
	}

	_, wentOffline := t.registry.Disconnect(c.ID)
	metrics.OnlineUsers.Set(float64(len(t.registry.ListOnline())))
	if wentOffline {
		t.broadcastAll(EvtUserOffline, PresencePayload{UserID: userID})
	}
}

// BroadcastToConversation delivers to every connection subscribed to the
// room.
func (t *Transport) BroadcastToConversation(conversationID, event string, payload interface{}) {
	t.mu.RLock()
	room := t.rooms[conversationID]
	targets := make([]*Client, 0, len(room))
	for _, c := range room {
		targets = append(targets, c)
	}
	t.mu.RUnlock()

	for _, c := range targets {
		t.push(c, event, payload)
	}
}

// BroadcastToUser delivers to every connection the user currently holds,
// covering multi-device delivery.
func (t *Transport) BroadcastToUser(userID, event string, payload interface{}) {
	for _, connID := range t.registry.Connections(userID) {
		t.mu.RLock()
		c, ok := t.clients[connID]
		t.mu.RUnlock()
		if ok {
			t.push(c, event, payload)
		}
	}
}

func (t *Transport) broadcastAll(event string, payload interface{}) {
	t.mu.RLock()
	targets := make([]*Client, 0, len(t.clients))
	for _, c := range t.clients {
		targets = append(targets, c)
	}
	t.mu.RUnlock()

	for _, c := range targets {
		t.push(c, event, payload)
	}
}

func (t *Transport) push(c *Client, event string, payload interface{}) {
	raw, err := encodeFrame(event, payload)
	if err != nil {
		t.log.Error("failed to encode frame", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- raw:
	default:
		metrics.WSBackpressure.Inc()
		t.log.Warn("outbound queue full, dropping frame",
			zap.String("conn_id", c.ID), zap.String("event", event))
	}
}

func (t *Transport) sendError(c *Client, err error) {
	t.push(c, EvtError, ErrorPayload{Message: err.Error()})
}

// requireUser rejects frames claiming a user the connection is not
// authenticated as.
func (t *Transport) requireUser(c *Client, userID string) error {
	t.mu.RLock()
	bound := c.UserID
	t.mu.RUnlock()

	if bound == "" {
		return common.AuthorizationError("connection is not authenticated")
	}
	if userID != "" && userID != bound {
		return common.AuthorizationError("user %s does not own this connection", userID)
	}
	return nil
}

func (t *Transport) leaveRoom(c *Client, conversationID, userID string) {
	t.mu.Lock()
	room, ok := t.rooms[conversationID]
	if ok {
		delete(room, c.ID)
		if len(room) == 0 {
			delete(t.rooms, conversationID)
		}
	}
	t.mu.Unlock()

	if ok {
		t.BroadcastToConversation(conversationID, EvtUserLeft, ConversationPayload{
			ConversationID: conversationID,
			UserID:         userID,
		})
	}
}

func encodeFrame(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return json.Marshal(Frame{Event: event, Data: data})
}

func messagePayload(msg *dbmysql.Message) MessagePayload {
	return MessagePayload{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		MessageType:    msg.Type.String(),
		Content:        msg.Content,
		ImageRef:       msg.ImageRef,
		SharedPostID:   msg.SharedPostID,
		CreatedAt:      msg.CreatedAt,
	}
}

func previewOf(msg *dbmysql.Message) string {
	switch msg.Type {
	case common.MessageImage:
		return "sent an image"
	case common.MessagePostShare:
		return "shared a post"
	default:
		return msg.Content
	}
}
