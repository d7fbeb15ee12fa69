// Navalbox Battleship
//
// Two players share a room identified by the URL. Each places a fleet, then
// they take turns firing at each other's waters. A hit lets the shooter fire
// again; a miss passes the turn. Sinking every cell of the opponent's fleet
// wins, and the room is closed shortly afterwards.
//
// Features:
// - WebSockets per room: /battleship/:roomid and /battleship/:roomid/ws
// - /ws?room=ID for clients that pick the room themselves
// - First joiner is player 0 and fires first
// - Seats keep their index when the other player leaves
// - Rooms are deleted once empty, after a finished game, or when idle
// - Random 8-char room IDs via crypto/rand, with server-side collision check
// - QR code for the room URL, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	_ "embed"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/navalbox/games/battleship"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// A full fleet with coordinates fits comfortably.
	maxMessageSize = 8192

	sendBuffer = 32
)

var (
	errClientClosed = errors.New("client closed")
	errSendBuffer   = errors.New("send buffer full")
)

// Client is one websocket connection. It satisfies battleship.Conn.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan battleship.Notification
	done chan struct{}
	once sync.Once

	// roomID is only touched by the read pump.
	roomID string
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan battleship.Notification, sendBuffer),
		done: make(chan struct{}),
	}
}

// Send queues n without blocking. A slow client loses messages rather than
// stalling the room.
func (c *Client) Send(n battleship.Notification) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.send <- n:
		return nil
	default:
		return errSendBuffer
	}
}

// Close stops the write pump, which flushes what is queued, sends a close
// frame and closes the connection. Safe to call more than once.
func (c *Client) Close() error {
	c.once.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *Client) readPump(cfg *Config, reg *battleship.Registry) {
	defer func() {
		if c.roomID != "" {
			reg.Leave(c.roomID, c)
		}
		_ = c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logf(cfg, "GAMES: Connection %s dropped: %v", c.id, err)
			}
			return
		}

		ev, err := battleship.ParseEvent(data)
		if err != nil {
			continue
		}

		if join, ok := ev.(battleship.JoinEvent); ok {
			if c.roomID == "" && !c.join(cfg, reg, join.RoomID) {
				return
			}
			continue
		}

		if c.roomID == "" {
			continue
		}

		if err := reg.Dispatch(c.roomID, c, ev); err != nil {
			logf(cfg, "GAMES: Rejected %T from %s in %q: %v", ev, c.id, c.roomID, err)
		}
	}
}

// join seats the client, reporting false if the room turned it away.
func (c *Client) join(cfg *Config, reg *battleship.Registry, roomID string) bool {
	if roomID == "" {
		roomID = battleship.DefaultRoomID
	}

	index, err := reg.Join(roomID, c)
	if err != nil {
		logf(cfg, "GAMES: Connection %s turned away from %q: %v", c.id, roomID, err)
		return false
	}

	c.roomID = roomID
	logf(cfg, "GAMES: Connection %s is player %d in %q", c.id, index, roomID)

	return true
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			for {
				select {
				case msg := <-c.send:
					if err := c.write(msg); err != nil {
						return
					}
				default:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					_ = c.conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}

func (c *Client) write(msg battleship.Notification) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func newUpgrader(cfg *Config) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(cfg.allowedOrigins, r.Header.Get("Origin"))
		},
	}
}

// originAllowed accepts any origin when allowed is empty, and requests
// without an Origin header, which do not come from browsers.
func originAllowed(allowed []string, origin string) bool {
	if len(allowed) == 0 || origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	return slices.ContainsFunc(allowed, func(a string) bool {
		a = strings.TrimSuffix(a, "/")
		return strings.EqualFold(a, origin) || strings.EqualFold(a, u.Host)
	})
}

// serveWS upgrades the request and runs the client until it disconnects.
// roomID may be empty, in which case the client must send a join event.
func serveWS(cfg *Config, reg *battleship.Registry, upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request, roomID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logf(cfg, "GAMES: Upgrade failed for %s: %v", realIP(r), err)
		return
	}

	client := newClient(conn)

	logf(cfg, "GAMES: Connection %s opened from %s", client.id, realIP(r))

	go client.writePump()

	if roomID != "" && !client.join(cfg, reg, roomID) {
		_ = client.Close()
		return
	}

	client.readPump(cfg, reg)
}

// WebSocket handler that picks the room based on :roomid
func serveRoomWS(cfg *Config, reg *battleship.Registry, upgrader *websocket.Upgrader) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("roomid")
		if roomID == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		serveWS(cfg, reg, upgrader, w, r, roomID)
	}
}

// WebSocket handler that takes the room from ?room=, falling back to
// --default-room.
func serveQueryWS(cfg *Config, reg *battleship.Registry, upgrader *websocket.Upgrader) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		roomID := r.URL.Query().Get("room")
		if roomID == "" {
			roomID = cfg.defaultRoom
		}

		serveWS(cfg, reg, upgrader, w, r, roomID)
	}
}

const roomIDLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Random bytes at or above this are discarded so every letter is equally likely.
const roomIDByteLimit = 256 - 256%len(roomIDLetters)

// newRoomID generates a crypto-random room ID that is not currently in use.
func newRoomID(reg *battleship.Registry) string {
	for {
		out := make([]byte, 0, 8)
		buf := make([]byte, 16)
		for len(out) < cap(out) {
			if _, err := rand.Read(buf); err != nil {
				panic("crypto/rand failure: " + err.Error())
			}
			for _, b := range buf {
				if int(b) >= roomIDByteLimit || len(out) == cap(out) {
					continue
				}
				out = append(out, roomIDLetters[int(b)%len(roomIDLetters)])
			}
		}
		id := string(out)

		if _, exists := reg.Get(id); !exists {
			return id
		}
	}
}

// reapInterval is half the session timeout, but never below a second.
func reapInterval(timeout time.Duration) time.Duration {
	return max(timeout/2, time.Second)
}

// reapRooms periodically removes rooms idle longer than cfg.sessionTimeout.
func reapRooms(ctx context.Context, cfg *Config, reg *battleship.Registry) {
	ticker := time.NewTicker(reapInterval(cfg.sessionTimeout))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := reg.Reap(cfg.sessionTimeout); n > 0 {
				logf(cfg, "GAMES: Reaped %d idle rooms", n)
			}
		}
	}
}

// QR handler: generates a PNG QR code for the current room URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if ps.ByName("roomid") == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:roomid/qr; strip trailing "/qr" to get the room URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	const qrSize = 320
	png, err := qrcode.Encode(scheme+"://"+r.Host+path, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

//go:embed assets/battleship/index.html
var indexHTML []byte

func serveRoomPage(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		cacheHeaders(w)
		securityHeaders(cfg, w)

		_, _ = w.Write(indexHTML)
	}
}

// redirectNewRoom handles GET /path by generating a new random room ID and
// redirecting to /path/:roomid.
func redirectNewRoom(cfg *Config, path string, reg *battleship.Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		roomID := newRoomID(reg)
		logf(cfg, "GAMES: Created room link %s/%s", path, roomID)
		http.Redirect(w, r, path+"/"+roomID, http.StatusTemporaryRedirect)
	}
}

// registerBattleshipGame sets up routes so that:
//   - $path                  → redirects to new random room (8-char ID)
//   - $path/:roomid          → HTML client
//   - $path/:roomid/ws       → WebSocket for that room
//   - $path/:roomid/qr       → PNG QR code for that room URL
//   - /ws?room=ID            → WebSocket for a room named by query
func registerBattleshipGame(ctx context.Context, cfg *Config, path string, mux *httprouter.Router) *battleship.Registry {
	reg := battleship.NewRegistry(
		battleship.WithGameOverDelay(cfg.gameOverDelay),
		battleship.WithLogger(func(format string, args ...any) {
			logf(cfg, format, args...)
		}),
	)

	if cfg.sessionTimeout > 0 {
		go reapRooms(ctx, cfg, reg)
	}

	upgrader := newUpgrader(cfg)

	mux.GET(cfg.prefix+path, redirectNewRoom(cfg, cfg.prefix+path, reg))

	mux.GET(cfg.prefix+path+"/:roomid", serveRoomPage(cfg))

	mux.GET(cfg.prefix+path+"/:roomid/ws", serveRoomWS(cfg, reg, upgrader))

	mux.GET(cfg.prefix+path+"/:roomid/qr", qrHandler)

	mux.GET(cfg.prefix+"/ws", serveQueryWS(cfg, reg, upgrader))

	return reg
}
