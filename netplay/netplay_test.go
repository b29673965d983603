package netplay

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	srv := NewServer(8, 60, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func nextCommand(t *testing.T, srv *Server) Command {
	t.Helper()
	select {
	case cmd := <-srv.Inbox():
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a command")
	}
	return Command{}
}

func TestJoinReelLeave(t *testing.T) {
	srv, url := startServer(t)

	c, err := Dial(context.Background(), url, "tester")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if _, err := uuid.Parse(c.SessionID); err != nil {
		t.Errorf("session id %q is not a uuid: %v", c.SessionID, err)
	}
	if c.TickRateHz != 60 {
		t.Errorf("TickRateHz = %d, want 60", c.TickRateHz)
	}

	join := nextCommand(t, srv)
	if join.Kind != CommandJoin || join.Session != c.SessionID || join.Name != "tester" {
		t.Errorf("join = %+v", join)
	}

	if err := c.SetReeling(true); err != nil {
		t.Fatal(err)
	}
	if err := c.SetReeling(false); err != nil {
		t.Fatal(err)
	}
	for _, want := range []bool{true, false} {
		cmd := nextCommand(t, srv)
		if cmd.Kind != CommandReel || cmd.Session != c.SessionID || cmd.Reeling != want {
			t.Errorf("reel = %+v, want reeling %v", cmd, want)
		}
	}

	if err := c.Fire(10, 20); err != nil {
		t.Fatal(err)
	}
	if err := c.Release(); err != nil {
		t.Fatal(err)
	}
	if cmd := nextCommand(t, srv); cmd.Kind != CommandFire || cmd.X != 10 || cmd.Y != 20 {
		t.Errorf("fire = %+v", cmd)
	}
	if cmd := nextCommand(t, srv); cmd.Kind != CommandRelease || cmd.Session != c.SessionID {
		t.Errorf("release = %+v", cmd)
	}

	c.Close()
	leave := nextCommand(t, srv)
	if leave.Kind != CommandLeave || leave.Session != c.SessionID {
		t.Errorf("leave = %+v", leave)
	}
}

func TestBroadcastState(t *testing.T) {
	srv, url := startServer(t)

	c, err := Dial(context.Background(), url, "watcher")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	nextCommand(t, srv)

	n, err := srv.Broadcast(NewState(42, []TetherView{{Gun: 3, Reeling: true, RopeLength: 120, MaxLength: 128}}))
	if err != nil || n != 1 {
		t.Fatalf("Broadcast = %d, %v; want 1 session", n, err)
	}

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	state, err := c.ReadState()
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	if state.Tick != 42 || len(state.Tethers) != 1 || state.Tethers[0].Gun != 3 || !state.Tethers[0].Reeling {
		t.Errorf("state = %+v", state)
	}

	if err := srv.Send(c.SessionID, NewState(43, nil)); err != nil {
		t.Fatal(err)
	}
	if state, err = c.ReadState(); err != nil || state.Tick != 43 {
		t.Errorf("ReadState = %+v, %v; want tick 43", state, err)
	}
	if err := srv.Send("nobody", NewState(1, nil)); err == nil {
		t.Error("Send to an unknown session should fail")
	}
}

func TestBadHelloIsRejected(t *testing.T) {
	srv, url := startServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(HelloMsg{Type: TypeHello, ProtocolVersion: "0"}); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("read err = %v, want policy violation close", err)
	}

	select {
	case cmd := <-srv.Inbox():
		t.Errorf("rejected client produced %+v", cmd)
	default:
	}
}

func TestParseHello(t *testing.T) {
	tests := []struct {
		name    string
		msg     string
		wantErr bool
		want    string
	}{
		{"valid", `{"type":"HELLO","protocol_version":"1","name":"ana"}`, false, "ana"},
		{"default name", `{"type":"HELLO","protocol_version":"1"}`, false, "player"},
		{"wrong version", `{"type":"HELLO","protocol_version":"2"}`, true, ""},
		{"wrong type", `{"type":"REEL","protocol_version":"1"}`, true, ""},
		{"not json", `hello`, true, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			hello, err := ParseHello([]byte(tc.msg))
			if tc.wantErr {
				if !errors.Is(err, ErrBadHello) {
					t.Errorf("err = %v, want ErrBadHello", err)
				}
				return
			}
			if err != nil || hello.Name != tc.want {
				t.Errorf("ParseHello = %+v, %v", hello, err)
			}
		})
	}
}

func TestParseReel(t *testing.T) {
	reel, err := ParseReel([]byte(`{"type":"REEL","protocol_version":"1","reeling":true}`))
	if err != nil || !reel.Reeling {
		t.Errorf("ParseReel = %+v, %v", reel, err)
	}
	if _, err := ParseReel([]byte(`{"type":"STATE","protocol_version":"1"}`)); !errors.Is(err, ErrUnknownType) {
		t.Errorf("err = %v, want ErrUnknownType", err)
	}
	if _, err := ParseReel([]byte(`{"type":"REEL","protocol_version":"0"}`)); err == nil {
		t.Error("expected a version error")
	}
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		name    string
		msg     string
		want    Command
		wantErr bool
	}{
		{"reel", `{"type":"REEL","protocol_version":"1","reeling":true}`, Command{Kind: CommandReel, Session: "s", Reeling: true}, false},
		{"fire", `{"type":"FIRE","protocol_version":"1","x":12.5,"y":-3}`, Command{Kind: CommandFire, Session: "s", X: 12.5, Y: -3}, false},
		{"release", `{"type":"RELEASE","protocol_version":"1"}`, Command{Kind: CommandRelease, Session: "s"}, false},
		{"state is not input", `{"type":"STATE","protocol_version":"1"}`, Command{}, true},
		{"wrong version", `{"type":"FIRE","protocol_version":"2","x":1,"y":1}`, Command{}, true},
		{"not json", `fire`, Command{}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseInput("s", []byte(tc.msg))
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ParseInput = %+v, want %+v", got, tc.want)
			}
		})
	}
}
