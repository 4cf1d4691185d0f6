package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/notify"
	"github.com/shouni/go-storyboard-kit/pkg/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	clientBuffer   = 64
	broadcastQueue = 256
)

// MessageTypeNotification は通知メッセージの種別です。それ以外の種別は store.EventType と同じ値です。
const MessageTypeNotification = "notification"

// Message は WebSocket で配信するメッセージです。
type Message struct {
	Type         string               `json:"type"`
	EpisodeID    string               `json:"episodeId,omitempty"`
	ShotID       string               `json:"shotId,omitempty"`
	Shot         *domain.Shot         `json:"shot,omitempty"`
	Notification *notify.Notification `json:"notification,omitempty"`
	Time         time.Time            `json:"time"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub は接続中の WebSocket クライアントに Store のイベントと通知を配信します。
type Hub struct {
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
	logger     *slog.Logger
}

// NewHub は Hub を生成します。配信を始めるには Run を呼び出します。
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, broadcastQueue),
		done:       make(chan struct{}),
		logger:     logger.With("component", "ws-hub"),
	}
}

// Run は ctx が終了するまでクライアントの登録と配信を処理します。
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.logger.Debug("クライアントが接続しました", "clients", len(h.clients))
		case c := <-h.unregister:
			h.remove(c)
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// 受信が追いつかないクライアントは切断する
					h.logger.Warn("送信キューが満杯のためクライアントを切断します")
					h.remove(c)
				}
			}
		case <-ctx.Done():
			for c := range h.clients {
				h.remove(c)
			}
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Publish はメッセージを全クライアントに配信します。キューが満杯の場合は破棄します。
func (h *Hub) Publish(msg Message) {
	if msg.Time.IsZero() {
		msg.Time = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("メッセージのエンコードに失敗しました", "type", msg.Type, "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("配信キューが満杯のためメッセージを破棄しました", "type", msg.Type)
	}
}

// Notify は notify.Notifier を実装します。
func (h *Hub) Notify(_ context.Context, n notify.Notification) {
	h.Publish(Message{Type: MessageTypeNotification, EpisodeID: n.EpisodeID, ShotID: n.ShotID, Notification: &n, Time: n.Time})
}

// Forward は events が閉じるか ctx が終了するまで Store のイベントを配信します。
func (h *Hub) Forward(ctx context.Context, events <-chan store.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Publish(Message{Type: string(ev.Type), EpisodeID: ev.EpisodeID, ShotID: ev.ShotID, Shot: ev.Shot, Time: ev.Time})
		case <-ctx.Done():
			return
		}
	}
}

// ServeWS は HTTP 接続を WebSocket にアップグレードしてクライアントを登録します。
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket へのアップグレードに失敗しました", "error", err)
		return
	}
	cl := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	select {
	case h.register <- cl:
	case <-h.done:
		conn.Close()
		return
	case <-c.Request.Context().Done():
		conn.Close()
		return
	}

	go h.writePump(cl)
	h.readPump(cl)
}

// readPump はクライアントからの読み込みを続け、切断を検知したら登録を解除します。
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
