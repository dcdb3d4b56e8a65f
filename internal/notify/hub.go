package notify

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Leganyst/reservation-core/internal/service"
)

// Hub раздаёт события броней открытым websocket-соединениям персонала ресторана.
type Hub struct {
	clients    map[uuid.UUID]map[*websocket.Conn]bool // restaurantID -> соединения
	broadcast  chan service.Event
	register   chan subscription
	unregister chan subscription
	mu         sync.Mutex
	done       chan struct{}

	upgrader  websocket.Upgrader
	writeWait time.Duration
}

// defaultWriteWait ограничивает запись в один сокет, чтобы зависший клиент
// не останавливал рассылку остальным.
const defaultWriteWait = 5 * time.Second

type subscription struct {
	conn         *websocket.Conn
	restaurantID uuid.UUID
}

// NewHub создаёт hub. origins: разрешённые Origin браузера; пустой список или "*"
// разрешают любой.
func NewHub(origins ...string) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*websocket.Conn]bool),
		broadcast:  make(chan service.Event, 64),
		register:   make(chan subscription),
		unregister: make(chan subscription),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(origins),
		},
		writeWait: defaultWriteWait,
	}
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = true
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// не браузер: заголовка нет
		return origin == "" || allowed[origin]
	}
}

// Run обслуживает подписки и рассылку до отмены ctx. Вызывается один раз.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, conns := range h.clients {
				for conn := range conns {
					conn.Close()
				}
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case sub := <-h.register:
			h.mu.Lock()
			if h.clients[sub.restaurantID] == nil {
				h.clients[sub.restaurantID] = make(map[*websocket.Conn]bool)
			}
			h.clients[sub.restaurantID][sub.conn] = true
			h.mu.Unlock()

		case sub := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[sub.restaurantID][sub.conn]; ok {
				delete(h.clients[sub.restaurantID], sub.conn)
				sub.conn.Close()
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients[ev.RestaurantID] {
				_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
				if err := conn.WriteJSON(ev); err != nil {
					log.Printf("ws: write error: %v", err)
					conn.Close()
					delete(h.clients[ev.RestaurantID], conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish ставит событие в очередь рассылки. Если Run не успевает, ждёт до отмены ctx.
func (h *Hub) Publish(ctx context.Context, ev service.Event) error {
	select {
	case h.broadcast <- ev:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribers возвращает число открытых соединений ресторана.
func (h *Hub) Subscribers(restaurantID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[restaurantID])
}

// Serve поднимает websocket и держит его, пока клиент не отключится.
// Входящие сообщения клиента игнорируются.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, restaurantID uuid.UUID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	sub := subscription{conn: conn, restaurantID: restaurantID}
	select {
	case h.register <- sub:
	case <-h.done:
		conn.Close()
		return nil
	}

	go func() {
		defer func() {
			select {
			case h.unregister <- sub:
			case <-h.done:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}
