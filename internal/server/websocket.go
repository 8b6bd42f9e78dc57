package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// WebSocketServer fans status messages out to every connected dashboard.
type WebSocketServer struct {
	logger     *slog.Logger
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewWebSocketServer(logger *slog.Logger) *WebSocketServer {
	return &WebSocketServer{
		logger:     logger,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (s *WebSocketServer) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			for client := range s.clients {
				close(client.send)
				delete(s.clients, client)
			}
			return
		case client := <-s.register:
			s.clients[client] = true
		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
		case message := <-s.broadcast:
			for client := range s.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(s.clients, client)
				}
			}
		}
	}
}

// Broadcast queues message for every client, giving up when ctx is done.
func (s *WebSocketServer) Broadcast(ctx context.Context, message []byte) {
	select {
	case s.broadcast <- message:
	case <-ctx.Done():
	case <-s.done:
	}
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", slog.Any("error", err))
		return
	}

	client := &Client{conn: conn, send: make(chan []byte, 256)}
	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go s.writePump(client)
	go s.readPump(client)
}

func (s *WebSocketServer) writePump(client *Client) {
	defer func() {
		client.conn.Close()
	}()

	for message := range client.send {
		w, err := client.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)

		if err := w.Close(); err != nil {
			return
		}
	}
	client.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (s *WebSocketServer) readPump(client *Client) {
	defer func() {
		select {
		case s.unregister <- client:
		case <-s.done:
		}
		client.conn.Close()
	}()

	for {
		_, _, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error("WebSocket read error", slog.Any("error", err))
			}
			break
		}
	}
}
