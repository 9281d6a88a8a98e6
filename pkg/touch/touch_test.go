package touch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-yolocapture/pkg/protocol"
)

func TestReadLines(t *testing.T) {
	var events []Event
	err := ReadLines(context.Background(), strings.NewReader("\n\nsnap\n"), func(ev Event) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("ReadLines: %v", err)
	}
	if len(events) != 6 {
		t.Fatalf("got %d events, want 6", len(events))
	}
	for i, ev := range events {
		want := Began
		if i%2 == 1 {
			want = Ended
		}
		if ev.Phase != want {
			t.Errorf("event %d phase = %s, want %s", i, ev.Phase, want)
		}
	}
	if events[4].ID != 3 {
		t.Errorf("third tap id = %d", events[4].ID)
	}
}

func TestReadLinesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := ReadLines(ctx, strings.NewReader("a\n"), func(Event) { called = true })
	if err != context.Canceled {
		t.Errorf("err = %v, want Canceled", err)
	}
	if called {
		t.Error("handler called after cancel")
	}
}

func TestProtocolConversion(t *testing.T) {
	ev := Event{Position: Point{X: 0.25, Y: 0.75}, ID: 3, Timestamp: time.UnixMilli(1234), Phase: Moved}
	wire := ev.Protocol()
	back := FromProtocol(&wire)
	if back.Position != ev.Position || back.ID != 3 || back.Phase != Moved || !back.Timestamp.Equal(ev.Timestamp) {
		t.Errorf("round trip = %+v, want %+v", back, ev)
	}
}

func TestRemoteDeliversTouchAndReportsState(t *testing.T) {
	upgrader := websocket.Upgrader{}
	states := make(chan protocol.StateData, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		msg, _ := protocol.NewTouchMessage(protocol.TouchData{Phase: "began", ID: 1})
		data, _ := msg.Bytes()
		conn.WriteMessage(websocket.TextMessage, data)

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			m, err := protocol.ParseMessage(raw)
			if err != nil {
				continue
			}
			if st, err := m.GetStateData(); err == nil {
				states <- *st
			}
		}
	}))
	defer server.Close()

	var mu sync.Mutex
	var got []Event
	received := make(chan struct{}, 1)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	remote := NewRemote(url, func(ev Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
		select {
		case received <- struct{}{}:
		default:
		}
	}, WithReconnectDelay(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go remote.Run(ctx)

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("touch event not delivered")
	}

	mu.Lock()
	if got[0].Phase != Began || got[0].ID != 1 {
		t.Errorf("event = %+v", got[0])
	}
	mu.Unlock()

	if err := remote.ReportState(protocol.StateData{Enabled: true, Count: 2}); err != nil {
		t.Fatalf("ReportState: %v", err)
	}
	select {
	case st := <-states:
		if st.Count != 2 || !st.Enabled {
			t.Errorf("state = %+v", st)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("state not received by server")
	}
}

func TestRemoteReportStateNotConnected(t *testing.T) {
	remote := NewRemote("ws://127.0.0.1:1/ws", func(Event) {})
	if err := remote.ReportState(protocol.StateData{}); err != ErrNotConnected {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
	if remote.Connected() {
		t.Error("Connected should be false")
	}
}

func TestRemoteRunStopsOnCancel(t *testing.T) {
	remote := NewRemote("ws://127.0.0.1:1/ws", func(Event) {}, WithReconnectDelay(5*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := remote.Run(ctx); err != context.DeadlineExceeded {
		t.Errorf("Run = %v, want DeadlineExceeded", err)
	}
}
