// Package ws serves the live projector feed: every connected projector
// watches one scene and receives that scene's aggregate changes as they are
// committed.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"saythat-server/game"
	"saythat-server/observe"
	"saythat-server/wsutil"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The projector is served from another origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// recentGuesses is how many guess log entries a snapshot carries.
const recentGuesses = 20

// SceneSource provides what a projector needs on connect.
type SceneSource interface {
	CurrentScene(ctx context.Context) (string, error)
	SceneSnapshot(ctx context.Context, scene string, recent int) (game.SceneSnapshot, error)
}

// maxHeld bounds the updates kept for a client waiting on its snapshot.
const maxHeld = 256

type sceneSwitch struct {
	client *Client
	scene  string
}

// syncDone hands the hub a client's snapshot for scene. The hub queues it
// ahead of the updates it held back since the client joined the scene. A nil
// snapshot just releases the held updates.
type syncDone struct {
	client   *Client
	scene    string
	snapshot []byte
}

// Hub maintains the set of active clients per scene and routes updates.
type Hub struct {
	Clients    map[string]map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	Switch     chan sceneSwitch
	sync       chan syncDone
	broadcast  chan UpdateMsg

	source  SceneSource
	metrics *observe.Metrics
}

// NewHub creates a new Hub. metrics may be nil.
func NewHub(source SceneSource, metrics *observe.Metrics) *Hub {
	return &Hub{
		Clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Switch:     make(chan sceneSwitch),
		sync:       make(chan syncDone),
		broadcast:  make(chan UpdateMsg, 256),
		source:     source,
		metrics:    metrics,
	}
}

// Run starts the hub's main loop. Should be run as a goroutine.
// When ctx is cancelled, Run closes every client and returns.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutdown signal received, stopping", "tag", "hub")
			for _, clients := range h.Clients {
				for c := range clients {
					close(c.Send)
				}
			}
			h.Clients = make(map[string]map[*Client]bool)
			return

		case client := <-h.Register:
			h.add(client)
			h.metrics.ProjectorConnected(1)
			slog.Info("projector connected", "tag", "hub", "scene", client.scene, "clients", h.count())

		case client := <-h.Unregister:
			if h.remove(client) {
				close(client.Send)
				h.metrics.ProjectorConnected(-1)
				slog.Info("projector disconnected", "tag", "hub", "clients", h.count())
			}

		case sw := <-h.Switch:
			if h.remove(sw.client) {
				sw.client.scene = sw.scene
				h.add(sw.client)
			}

		case done := <-h.sync:
			c := done.client
			if !h.Clients[c.scene][c] || c.scene != done.scene {
				continue
			}
			if done.snapshot != nil {
				wsutil.SafeSend(c.Send, done.snapshot)
			}
			for _, data := range c.held {
				wsutil.SafeSend(c.Send, data)
			}
			c.held = nil
			c.synced = true

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				slog.Error("encode update", "tag", "hub", "error", err)
				continue
			}
			for c := range h.Clients[msg.Scene] {
				if !c.synced {
					if len(c.held) < maxHeld {
						c.held = append(c.held, data)
					}
					continue
				}
				if !wsutil.SafeSend(c.Send, data) {
					slog.Warn("projector too slow, update dropped", "tag", "hub", "scene", msg.Scene, "type", msg.Type)
				}
			}
		}
	}
}

// add places c in its scene's set. The client is unsynced until its snapshot
// for that scene arrives.
func (h *Hub) add(c *Client) {
	c.synced = false
	c.held = nil
	set, ok := h.Clients[c.scene]
	if !ok {
		set = make(map[*Client]bool)
		h.Clients[c.scene] = set
	}
	set[c] = true
}

func (h *Hub) remove(c *Client) bool {
	set, ok := h.Clients[c.scene]
	if !ok || !set[c] {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.Clients, c.scene)
	}
	return true
}

func (h *Hub) count() int {
	n := 0
	for _, set := range h.Clients {
		n += len(set)
	}
	return n
}

// Publish queues an update for the projectors of scene. It never blocks; if
// the queue is full the update is dropped.
func (h *Hub) Publish(scene, kind, key string, value json.RawMessage) {
	msg := UpdateMsg{Type: kind, Scene: scene, Key: key, Value: value}
	select {
	case h.broadcast <- msg:
	default:
		slog.Warn("broadcast queue full, update dropped", "tag", "hub", "scene", scene, "type", kind)
	}
}

// ServeWS upgrades a projector connection. The scene comes from the "scene"
// query parameter and defaults to the current scene.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	scene := r.URL.Query().Get("scene")
	if scene == "" {
		current, err := h.source.CurrentScene(r.Context())
		if err != nil {
			http.Error(w, "no scene selected", http.StatusBadRequest)
			return
		}
		scene = current
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "tag", "hub", "error", err)
		return
	}

	client := &Client{
		Hub:   h,
		Conn:  conn,
		Send:  make(chan []byte, 256),
		scene: scene,
	}
	h.Register <- client

	go client.WritePump()
	go client.ReadPump()

	// Registered first: updates committed while the snapshot is read are
	// held by the hub and follow it.
	snapshot, err := h.snapshotMessage(context.WithoutCancel(r.Context()), scene)
	if err != nil {
		slog.Error("build snapshot", "tag", "hub", "scene", scene, "error", err)
		client.sendError("Scene unavailable.")
		h.Unregister <- client
		return
	}
	h.sync <- syncDone{client: client, scene: scene, snapshot: snapshot}
}

func (h *Hub) snapshotMessage(ctx context.Context, scene string) ([]byte, error) {
	snap, err := h.source.SceneSnapshot(ctx, scene, recentGuesses)
	if err != nil {
		return nil, err
	}
	return json.Marshal(SnapshotMsg{Type: "snapshot", Snapshot: snap})
}
