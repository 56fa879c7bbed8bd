package main

import (
	"bytes"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHub_BroadcastAndInput(t *testing.T) {
	h := newHub(slog.New(slog.DiscardHandler))
	srv := httptest.NewServer(h.handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	frame := []byte{0x89, 'P', 'N', 'G'}
	h.Broadcast(frame)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, got, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if kind != websocket.BinaryMessage || !bytes.Equal(got, frame) {
		t.Errorf("received kind %d %v", kind, got)
	}

	if err := conn.WriteJSON(pointerMessage{X: 0.5, Y: 0.25, DX: 0.01}); err != nil {
		t.Fatal(err)
	}
	var msgs []pointerMessage
	for len(msgs) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("pointer message never arrived")
		}
		msgs = h.Pending()
		time.Sleep(5 * time.Millisecond)
	}
	if msgs[0] != (pointerMessage{X: 0.5, Y: 0.25, DX: 0.01}) {
		t.Errorf("pointer = %+v", msgs[0])
	}
}

func TestHub_IndexPage(t *testing.T) {
	h := newHub(slog.New(slog.DiscardHandler))
	rec := httptest.NewRecorder()
	h.handler().ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if !strings.Contains(rec.Body.String(), "new WebSocket") {
		t.Error("index page does not open a websocket")
	}
}
