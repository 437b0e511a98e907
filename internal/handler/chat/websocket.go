package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/mindcheck/backend/internal/analysis/crisis"
	"github.com/zhouzirui/mindcheck/backend/internal/model/chat"
	"github.com/zhouzirui/mindcheck/backend/internal/service/ai"
	"github.com/zhouzirui/mindcheck/backend/internal/service/conversation"
	profileService "github.com/zhouzirui/mindcheck/backend/internal/service/profile"
	"github.com/zhouzirui/mindcheck/backend/internal/service/timer"
	"github.com/zhouzirui/mindcheck/backend/pkg/utils"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
	outboxSize   = 64
)

// Deps 聊天处理器的依赖。
type Deps struct {
	Profiles  *profileService.Service
	Assistant ai.Assistant
	Detector  *crisis.Detector
	// Duration 是每个档案的会话时长。
	Duration time.Duration
	// TimerOptions 允许测试注入时钟与调度器。
	TimerOptions []timer.Option
}

// WebSocketHandler 把一个 WebSocket 连接当作一个聊天页面实例。
type WebSocketHandler struct {
	deps     Deps
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(deps Deps) *WebSocketHandler {
	return &WebSocketHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/profiles/{profileID}/chat", h.handleWebSocket)
}

// 客户端 → 服务端
const (
	inboundSend        = "send"
	inboundDismissGate = "dismiss_gate"
)

// 服务端 → 客户端
const (
	outboundSnapshot = "snapshot"
	outboundMessage  = "message"
	outboundCrisis   = "crisis"
	outboundBusy     = "busy"
	outboundTick     = "tick"
	outboundExpired  = "expired"
	outboundError    = "error"
)

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type sendPayload struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type snapshotPayload struct {
	Messages         []chat.Message `json:"messages"`
	RemainingSeconds int            `json:"remainingSeconds"`
	Remaining        string         `json:"remaining"`
	Expired          bool           `json:"expired"`
	Busy             bool           `json:"busy"`
}

type tickPayload struct {
	RemainingSeconds int    `json:"remainingSeconds"`
	Remaining        string `json:"remaining"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")

	p, err := h.deps.Profiles.Load(r.Context(), profileID)
	switch {
	case errors.Is(err, profileService.ErrInvalidID):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, profileService.ErrNotOnboarded):
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		log.Error().Err(err).Str("component", "websocket").Msg("failed to load profile")
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	kv, err := h.deps.Profiles.Scope(profileID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "websocket").Msg("upgrade failed")
		return
	}
	defer conn.Close()

	logger := log.With().Str("component", "websocket").Str("profile", profileID).Logger()
	logger.Info().Msg("chat view opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ctrl := conversation.New(conversation.Config{
		KV:        kv,
		Assistant: h.deps.Assistant,
		Detector:  h.deps.Detector,
		Timer:     timer.New(kv, h.deps.Duration, h.deps.TimerOptions...),
		UserName:  p.UserName,
		Severity:  p.Severity,
	})
	defer ctrl.Close()

	// 重置档案时先结束本连接，防止旧会话把记录写回。
	detach := h.deps.Profiles.Attach(profileID, func() {
		ctrl.Close()
		cancel()
	})
	defer detach()

	if err := ctrl.Activate(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to activate conversation")
		return
	}

	// 激活期间的到期事件已体现在快照里，之后再订阅。
	outbox := make(chan outgoingMessage, outboxSize)
	ctrl.Subscribe(func(ev conversation.Event) {
		frame, ok := eventFrame(ev)
		if !ok {
			return
		}
		select {
		case outbox <- frame:
		case <-ctx.Done():
		}
	})

	writer := &frameWriter{conn: conn}
	remaining := ctrl.Remaining()
	if err := writer.write(outgoingMessage{
		Type: outboundSnapshot,
		Data: snapshotPayload{
			Messages:         ctrl.Messages(),
			RemainingSeconds: int(remaining / time.Second),
			Remaining:        timer.Format(remaining),
			Expired:          ctrl.Gated(),
			Busy:             ctrl.Busy(),
		},
	}); err != nil {
		logger.Warn().Err(err).Msg("failed to send snapshot")
		return
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go h.writeLoop(ctx, cancel, writer, outbox, logger)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Msg("read error")
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if frame, ok := h.handleInbound(ctrl, &msg); !ok {
			select {
			case outbox <- frame:
			case <-ctx.Done():
			}
		}
	}

	logger.Info().Msg("chat view closed")
}

// handleInbound 处理客户端消息，失败时返回需要回写的错误帧。
func (h *WebSocketHandler) handleInbound(ctrl *conversation.Controller, msg *inboundMessage) (outgoingMessage, bool) {
	switch msg.Type {
	case inboundSend:
		var payload sendPayload
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				return errorFrame("invalid_payload", "invalid send payload"), false
			}
		}
		if err := ctrl.SubmitUserMessage(payload.Text); err != nil {
			return submitErrorFrame(err), false
		}
	case inboundDismissGate:
		ctrl.DismissGate()
	default:
		return errorFrame("unknown_type", "unsupported message type"), false
	}
	return outgoingMessage{}, true
}

// writeLoop 是连接上唯一的写入者，同时负责定期发送 ping。
func (h *WebSocketHandler) writeLoop(ctx context.Context, cancel context.CancelFunc, w *frameWriter, outbox <-chan outgoingMessage, logger zerolog.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// 服务关闭时唤醒阻塞在读取上的连接。
			w.close()
			return
		case frame := <-outbox:
			if err := w.write(frame); err != nil {
				logger.Debug().Err(err).Msg("write failed, closing")
				cancel()
				w.conn.Close()
				return
			}
		case <-ticker.C:
			if err := w.ping(); err != nil {
				cancel()
				w.conn.Close()
				return
			}
		}
	}
}

type frameWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *frameWriter) write(frame outgoingMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if frame.Timestamp == 0 {
		frame.Timestamp = time.Now().UnixMilli()
	}
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(frame)
}

func (w *frameWriter) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
	w.conn.Close()
}

func (w *frameWriter) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func eventFrame(ev conversation.Event) (outgoingMessage, bool) {
	switch ev.Type {
	case conversation.EventMessage:
		return outgoingMessage{Type: outboundMessage, Data: ev.Message}, true
	case conversation.EventCrisis:
		return outgoingMessage{Type: outboundCrisis, Data: ev.Notice}, true
	case conversation.EventBusy:
		return outgoingMessage{Type: outboundBusy, Data: map[string]bool{"busy": ev.Busy}}, true
	case conversation.EventTick:
		return outgoingMessage{Type: outboundTick, Data: tickPayload{
			RemainingSeconds: int(ev.Remaining / time.Second),
			Remaining:        timer.Format(ev.Remaining),
		}}, true
	case conversation.EventExpired:
		return outgoingMessage{Type: outboundExpired}, true
	default:
		return outgoingMessage{}, false
	}
}

func submitErrorFrame(err error) outgoingMessage {
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage):
		return errorFrame("empty_message", err.Error())
	case errors.Is(err, conversation.ErrBusy):
		return errorFrame("busy", err.Error())
	case errors.Is(err, conversation.ErrSessionGated):
		return errorFrame("session_expired", err.Error())
	case errors.Is(err, conversation.ErrClosed):
		return errorFrame("closed", err.Error())
	default:
		return errorFrame("internal", "failed to submit message")
	}
}

func errorFrame(code, message string) outgoingMessage {
	return outgoingMessage{Type: outboundError, Data: errorPayload{Code: code, Message: message}}
}
