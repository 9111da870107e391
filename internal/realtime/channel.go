// Package realtime owns the single push connection to the backend. It
// receives environment telemetry and scene-change notifications, mirrors
// the latest snapshot into the local cache, and republishes every message
// to its subscribers as a typed event.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"homepanel/internal/cache"
	"homepanel/internal/log"
)

// EventType of a push event
type EventType string

const (
	EventMonitorData EventType = "monitor_data"
	EventSceneUpdate EventType = "scene_update"
)

// Event is a typed push notification delivered to subscribers
type Event struct {
	Type EventType `json:"type"`

	// Snapshot is set for monitor_data events
	Snapshot *cache.Snapshot `json:"snapshot,omitempty"`

	// Payload carries the raw message body for informational events
	Payload json.RawMessage `json:"payload,omitempty"`
}

// pushMessage is the wire shape of a server push
type pushMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// monitorData is the wire shape of a telemetry push
type monitorData struct {
	Temperature  float64 `json:"temperature"`
	Illumination float64 `json:"illumination"`
	Humidity     float64 `json:"humidity"`
	Active       string  `json:"active"`
}

// Channel is the push connection. At most one websocket is live per Channel;
// Connect while connected is a no-op and Disconnect clears the connection so
// a later Connect dials a fresh session.
type Channel struct {
	url string
	db  *cache.DB

	mu   sync.Mutex
	conn *websocket.Conn

	subMu   sync.RWMutex
	subs    map[int]chan Event
	nextSub int
}

// New creates a channel for the given push endpoint. It does not connect.
func New(url string, db *cache.DB) *Channel {
	return &Channel{
		url:  url,
		db:   db,
		subs: make(map[int]chan Event),
	}
}

// Connect dials the push endpoint and starts the read loop. Calling Connect
// on an already-connected channel is a no-op.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial push endpoint: %w", err)
	}

	c.conn = conn
	go c.readLoop(conn)

	log.Info("Push channel connected to %s", c.url)
	if c.db != nil {
		c.db.LogEvent(cache.EventSourceRealtime, cache.EventTypeConnection, "push channel connected", nil)
	}
	return nil
}

// Connected reports whether a live connection exists
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Disconnect tears down the connection. Safe to call when not connected.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Subscribe registers a listener for push events. The returned cancel
// function unregisters it and is safe to call more than once. A subscriber
// that falls behind has events dropped rather than blocking the channel.
func (c *Channel) Subscribe() (<-chan Event, func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan Event, 16)
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			close(ch)
			c.subMu.Unlock()
		})
	}
	return ch, cancel
}

// SubscriberCount returns the number of registered subscribers
func (c *Channel) SubscriberCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subs)
}

func (c *Channel) publish(ev Event) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			log.Warn("Push subscriber backed up, dropping %s event", ev.Type)
		}
	}
}

// readLoop consumes push messages until the connection dies. On exit it
// clears the singleton only if it still owns it, so a Disconnect+Connect
// race cannot tear down the replacement connection.
func (c *Channel) readLoop(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("Push channel read error: %v", err)
			}
			return
		}

		var msg pushMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug("Ignoring malformed push message: %v", err)
			continue
		}

		switch EventType(msg.Type) {
		case EventMonitorData:
			c.handleMonitorData(msg.Data)
		case EventSceneUpdate:
			c.publish(Event{Type: EventSceneUpdate, Payload: msg.Data})
		default:
			log.Debug("Ignoring unknown push message type %q", msg.Type)
		}
	}
}

func (c *Channel) handleMonitorData(data json.RawMessage) {
	var md monitorData
	if err := json.Unmarshal(data, &md); err != nil {
		log.Warn("Failed to parse monitor_data push: %v", err)
		return
	}

	snap := cache.Snapshot{
		Temperature:  md.Temperature,
		Illumination: md.Illumination,
		Humidity:     md.Humidity,
		Active:       md.Active,
		LastUpdated:  time.Now().UTC(),
	}

	// Persist first so late subscribers reading the cache see the same
	// snapshot that is being broadcast
	if c.db != nil {
		if err := c.db.SaveSnapshot(snap); err != nil {
			log.Error("Failed to persist environment snapshot: %v", err)
		}
	}

	c.publish(Event{Type: EventMonitorData, Snapshot: &snap})
}
