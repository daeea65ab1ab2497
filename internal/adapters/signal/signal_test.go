package signal

import (
	"encoding/json"
	"testing"

	"github.com/dkrush/signald/internal/app"
	"github.com/dkrush/signald/internal/config"
	"github.com/dkrush/signald/internal/core"
	"github.com/dkrush/signald/internal/protocol"
)

func testController() *SignalWSController {
	cfg := &config.Config{
		AllowedOrigin: "*",
		ReadLimit:     32768,
		SendBuffer:    32,
	}
	coord := app.NewCoordinator(app.NewRegistry(), app.NewCallStore(), nil)
	return NewSignalWSController(cfg, coord)
}

// testConn builds a WsSignalConn that is attached to the coordinator but has
// no real websocket behind it; outbound frames land in the send channel.
func testConn(ctl *SignalWSController) *WsSignalConn {
	c := newWsSignalConn(nil, 32)
	ctl.Coord.OnConnect(c)
	return c
}

func drain(t *testing.T, c *WsSignalConn) []protocol.Envelope {
	t.Helper()
	var out []protocol.Envelope
	for {
		select {
		case fr := <-c.send:
			var env protocol.Envelope
			if err := json.Unmarshal(fr, &env); err != nil {
				t.Fatalf("bad frame %q: %v", fr, err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func errorsOf(t *testing.T, c *WsSignalConn) []string {
	t.Helper()
	var out []string
	for _, env := range drain(t, c) {
		if env.Event != protocol.EventError {
			continue
		}
		var p protocol.Error
		if err := json.Unmarshal(env.Data, &p); err != nil {
			t.Fatal(err)
		}
		out = append(out, p.Error)
	}
	return out
}

func TestHandleEventBadJSON(t *testing.T) {
	ctl := testController()
	c := testConn(ctl)

	ctl.handleEvent(c.sid, c, []byte(`{not json`))

	if got := errorsOf(t, c); len(got) != 1 || got[0] != "bad_payload" {
		t.Fatalf("errors = %v, want [bad_payload]", got)
	}
}

func TestHandleEventUnknownType(t *testing.T) {
	ctl := testController()
	c := testConn(ctl)

	ctl.handleEvent(c.sid, c, []byte(`{"event":"launch-missiles","data":{}}`))

	if got := errorsOf(t, c); len(got) != 1 || got[0] != "unknown_event" {
		t.Fatalf("errors = %v, want [unknown_event]", got)
	}
}

func TestUserInfoMissingFields(t *testing.T) {
	ctl := testController()
	c := testConn(ctl)

	ctl.handleEvent(c.sid, c, []byte(`{"event":"user-info","data":{"userId":"alice"}}`))

	if got := errorsOf(t, c); len(got) != 1 || got[0] != "bad_payload" {
		t.Fatalf("errors = %v, want [bad_payload]", got)
	}
}

func TestStartCallBeforeRegister(t *testing.T) {
	ctl := testController()
	c := testConn(ctl)

	ctl.handleEvent(c.sid, c, []byte(`{"event":"start-call","data":{"type":"audio","participants":["bob"]}}`))

	if got := errorsOf(t, c); len(got) != 1 || got[0] != "not_registered" {
		t.Fatalf("errors = %v, want [not_registered]", got)
	}
}

func TestStartCallRejectsBadKind(t *testing.T) {
	ctl := testController()
	c := testConn(ctl)

	ctl.handleEvent(c.sid, c, []byte(`{"event":"user-info","data":{"userId":"alice","userName":"Alice"}}`))
	ctl.handleEvent(c.sid, c, []byte(`{"event":"start-call","data":{"type":"hologram","participants":["bob"]}}`))

	if got := errorsOf(t, c); len(got) != 1 || got[0] != "bad_payload" {
		t.Fatalf("errors = %v, want [bad_payload]", got)
	}
}

// A full handshake through the dispatch layer: register two users, start a
// call, relay the accept, and make sure one bad frame in between affects
// nobody else.
func TestDispatchEndToEnd(t *testing.T) {
	ctl := testController()
	alice := testConn(ctl)
	bob := testConn(ctl)

	ctl.handleEvent(alice.sid, alice, []byte(`{"event":"user-info","data":{"userId":"alice","userName":"Alice"}}`))
	ctl.handleEvent(bob.sid, bob, []byte(`{"event":"user-info","data":{"userId":"bob","userName":"Bob"}}`))

	ctl.handleEvent(alice.sid, alice, []byte(`{"event":"start-call","data":{"type":"video","participants":["bob"]}}`))

	envs := drain(t, bob)
	if len(envs) != 1 || envs[0].Event != protocol.EventIncomingCall {
		t.Fatalf("bob got %v, want one incoming-call", envs)
	}
	var inc protocol.IncomingCall
	if err := json.Unmarshal(envs[0].Data, &inc); err != nil {
		t.Fatal(err)
	}
	if inc.Caller != "alice" || inc.Type != "video" || inc.CallID == "" {
		t.Fatalf("unexpected incoming-call: %+v", inc)
	}

	// A malformed frame from bob must only answer bob.
	ctl.handleEvent(bob.sid, bob, []byte(`garbage`))
	if got := errorsOf(t, bob); len(got) != 1 {
		t.Fatalf("bob errors = %v", got)
	}
	if got := drain(t, alice); len(got) != 0 {
		t.Fatalf("alice was affected by bob's bad frame: %v", got)
	}

	ctl.handleEvent(bob.sid, bob, []byte(`{"event":"accept-call","data":{"callerId":"alice","answer":{"sdp":"blob"}}}`))

	envs = drain(t, alice)
	if len(envs) != 1 || envs[0].Event != protocol.EventCallAccepted {
		t.Fatalf("alice got %v, want one call-accepted", envs)
	}
}

// A reload opens a second link under the same client token. Session ids are
// minted per link, so the old link's late teardown must not evict the
// re-registered user from the fresh link.
func TestSessionIDMintedPerLink(t *testing.T) {
	ctl := testController()
	old := testConn(ctl)
	fresh := testConn(ctl)

	if old.ID() == fresh.ID() {
		t.Fatal("two links must not share a session id")
	}

	ctl.handleEvent(old.sid, old, []byte(`{"event":"user-info","data":{"userId":"alice","userName":"Alice"}}`))
	ctl.handleEvent(fresh.sid, fresh, []byte(`{"event":"user-info","data":{"userId":"alice","userName":"Alice"}}`))

	// The old link's readPump exits after the fresh one re-registered.
	ctl.Coord.OnDisconnect(old.sid)

	bob := testConn(ctl)
	ctl.handleEvent(bob.sid, bob, []byte(`{"event":"user-info","data":{"userId":"bob","userName":"Bob"}}`))
	ctl.handleEvent(bob.sid, bob, []byte(`{"event":"signal","data":{"to":"alice","signal":{"sdp":"blob"}}}`))

	got := drain(t, fresh)
	if len(got) != 1 || got[0].Event != protocol.EventSignal {
		t.Fatalf("fresh link got %v, want the relayed signal", got)
	}
	if leftovers := drain(t, old); len(leftovers) != 0 {
		t.Fatalf("stale link received %v", leftovers)
	}
}

func TestPing(t *testing.T) {
	ctl := testController()
	c := testConn(ctl)

	ctl.handleEvent(c.sid, c, []byte(`{"event":"ping"}`))

	envs := drain(t, c)
	if len(envs) != 1 || envs[0].Event != protocol.EventPong {
		t.Fatalf("got %v, want one pong", envs)
	}
}

func TestTrySendBackpressure(t *testing.T) {
	c := &WsSignalConn{sid: "s1", send: make(chan core.Frame, 1)}

	if err := c.TrySend(core.Frame("a")); err != nil {
		t.Fatal(err)
	}
	if err := c.TrySend(core.Frame("b")); err != ErrBackpressure {
		t.Fatalf("err = %v, want ErrBackpressure", err)
	}
}
