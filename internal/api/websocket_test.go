package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vcstech/pulseline-core/internal/infrastructure/mqtt"
)

// fakeStateSource records subscriptions so tests can inject messages.
type fakeStateSource struct {
	topic   string
	handler mqtt.MessageHandler
}

func (f *fakeStateSource) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.topic = topic
	f.handler = handler
	return nil
}

// hubClient creates a client attached to the hub without a network
// connection. Broadcasts land on the send channel directly.
func hubClient(hub *Hub, channels ...string) *WSClient {
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	for _, ch := range channels {
		client.subscriptions[ch] = struct{}{}
	}
	hub.Register(client)
	return client
}

func TestHubBroadcastRespectsSubscriptions(t *testing.T) {
	srv, _ := testServer(t)
	hub := srv.hub

	subscribed := hubClient(hub, ChannelLineState)
	other := hubClient(hub, "something.else")

	hub.Broadcast(ChannelLineState, map[string]any{"name": "led0", "level": 1})

	select {
	case data := <-subscribed.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		if msg.Type != WSTypeEvent || msg.EventType != ChannelLineState {
			t.Errorf("msg = %+v, want event on %s", msg, ChannelLineState)
		}
	default:
		t.Fatal("subscribed client received nothing")
	}

	select {
	case <-other.send:
		t.Fatal("unsubscribed client received a broadcast")
	default:
	}
}

func TestHubUnregisterClosesSendOnce(t *testing.T) {
	srv, _ := testServer(t)
	hub := srv.hub

	client := hubClient(hub)
	hub.Unregister(client)
	// Second unregister must not panic on double close.
	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", hub.ClientCount())
	}
}

func TestSubscribeStateUpdatesRelaysToHub(t *testing.T) {
	srv, _ := testServer(t)

	source := &fakeStateSource{}
	srv.states = source
	if err := srv.subscribeStateUpdates(); err != nil {
		t.Fatalf("subscribeStateUpdates: %v", err)
	}

	if source.topic != "pulseline/line/+/state" {
		t.Errorf("subscribed topic = %q, want pulseline/line/+/state", source.topic)
	}

	client := hubClient(srv.hub, ChannelLineState)

	payload := `{"name":"led0","enabled":true,"freq":25,"on_cycles":1,"off_cycles":3,"level":1}`
	if err := source.handler("pulseline/line/led0/state", []byte(payload)); err != nil {
		t.Fatalf("handler: %v", err)
	}

	select {
	case data := <-client.send:
		if !strings.Contains(string(data), `"name":"led0"`) {
			t.Errorf("broadcast payload missing line name: %s", data)
		}
	default:
		t.Fatal("no broadcast after state publication")
	}
}

func TestSubscribeStateUpdatesIgnoresMalformedPayload(t *testing.T) {
	srv, _ := testServer(t)

	source := &fakeStateSource{}
	srv.states = source
	if err := srv.subscribeStateUpdates(); err != nil {
		t.Fatalf("subscribeStateUpdates: %v", err)
	}

	client := hubClient(srv.hub, ChannelLineState)

	if err := source.handler("pulseline/line/led0/state", []byte("{broken")); err != nil {
		t.Fatalf("malformed payload should not error the handler: %v", err)
	}

	select {
	case <-client.send:
		t.Fatal("malformed payload was broadcast")
	default:
	}
}

func TestSubscribeStateUpdatesWithoutSource(t *testing.T) {
	srv, _ := testServer(t)

	srv.states = nil
	if err := srv.subscribeStateUpdates(); err != nil {
		t.Errorf("nil state source should be tolerated, got %v", err)
	}
}

func TestWebSocketSubscribeAndReceive(t *testing.T) {
	srv, handler := testServer(t)

	ts := httptest.NewServer(handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	sub := WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelLineState}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	//nolint:errcheck // Deadline best-effort; timeouts surface via ReadJSON
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ack WSMessage
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("read subscribe ack: %v", err)
	}
	if ack.Type != WSTypeResponse || ack.ID != "sub-1" {
		t.Fatalf("ack = %+v, want response for sub-1", ack)
	}

	srv.hub.Broadcast(ChannelLineState, map[string]any{"name": "led0", "level": 0})

	var event WSMessage
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Type != WSTypeEvent || event.EventType != ChannelLineState {
		t.Errorf("event = %+v, want %s event", event, ChannelLineState)
	}
}

func TestWebSocketPing(t *testing.T) {
	_, handler := testServer(t)

	ts := httptest.NewServer(handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	//nolint:errcheck // Deadline best-effort; timeouts surface via ReadJSON
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var pong WSMessage
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong.Type != WSTypePong || pong.ID != "p1" {
		t.Errorf("pong = %+v, want pong for p1", pong)
	}
}
