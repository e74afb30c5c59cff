package statusws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/camcord/camcord/internal/ipc"
)

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/status"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) *ipc.StatusSnapshot {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var snap ipc.StatusSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return &snap
}

func newTestServer(t *testing.T) (*Broadcaster, *httptest.Server) {
	t.Helper()
	b := New(nil)
	ts := httptest.NewServer(b.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { b.Shutdown(context.Background()) })
	return b, ts
}

func waitForClients(t *testing.T, b *Broadcaster, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for b.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count: got %d, want %d", b.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishReachesSubscriber(t *testing.T) {
	b, ts := newTestServer(t)

	conn := dial(t, ts)
	waitForClients(t, b, 1)

	b.Publish(&ipc.StatusSnapshot{Status: "recording", Device: "/dev/video0", FrameCount: 42})

	snap := readSnapshot(t, conn)
	if snap.Status != "recording" {
		t.Errorf("status: got %q, want recording", snap.Status)
	}
	if snap.FrameCount != 42 {
		t.Errorf("frame_count: got %d, want 42", snap.FrameCount)
	}
}

func TestNewSubscriberGetsLastSnapshot(t *testing.T) {
	b, ts := newTestServer(t)

	// Publish before anyone is connected
	b.Publish(&ipc.StatusSnapshot{Status: "stopped", LastClip: "/tmp/clip.mp4"})

	conn := dial(t, ts)
	snap := readSnapshot(t, conn)
	if snap.Status != "stopped" || snap.LastClip != "/tmp/clip.mp4" {
		t.Errorf("replay snapshot: %+v", snap)
	}
}

func TestPublishFansOut(t *testing.T) {
	b, ts := newTestServer(t)

	c1 := dial(t, ts)
	c2 := dial(t, ts)
	waitForClients(t, b, 2)

	b.Publish(&ipc.StatusSnapshot{Status: "recording"})

	for i, conn := range []*websocket.Conn{c1, c2} {
		snap := readSnapshot(t, conn)
		if snap.Status != "recording" {
			t.Errorf("client %d: got status %q", i, snap.Status)
		}
	}
}

func TestDisconnectedClientIsDropped(t *testing.T) {
	b, ts := newTestServer(t)

	conn := dial(t, ts)
	waitForClients(t, b, 1)

	conn.Close()

	// Publishing to a closed connection must evict it
	deadline := time.Now().Add(2 * time.Second)
	for b.ClientCount() != 0 {
		b.Publish(&ipc.StatusSnapshot{Status: "recording"})
		if time.Now().After(deadline) {
			t.Fatalf("closed client never dropped, count=%d", b.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestShutdownClosesSubscribers(t *testing.T) {
	b, ts := newTestServer(t)

	conn := dial(t, ts)
	waitForClients(t, b, 1)

	if err := b.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if b.ClientCount() != 0 {
		t.Errorf("clients remain after shutdown: %d", b.ClientCount())
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected read error after shutdown")
	}
}
