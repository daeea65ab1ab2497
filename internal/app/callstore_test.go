package app

import (
	"testing"

	"github.com/dkrush/signald/internal/core"
	"github.com/dkrush/signald/internal/domain"
)

func testCall(id domain.CallID) *domain.Call {
	return domain.NewCall(id, domain.CallAudio, "alice", []domain.UserID{"bob"})
}

func member(sid, userID string) *Session {
	return &Session{Conn: &fakeConn{id: core.SessionID(sid)}, UserID: domain.UserID(userID)}
}

func TestCreateOrReplaceCarriesGroup(t *testing.T) {
	s := NewCallStore()

	s.CreateOrReplace(testCall("c1"))
	s.AddParticipant("c1", member("s1", "alice"))

	// Re-dialing the same group id replaces the record, not its group:
	// earlier joiners are still bound to the id.
	s.CreateOrReplace(domain.NewCall("c1", domain.CallVideo, "bob", []domain.UserID{"alice"}))
	if s.MemberCount("c1") != 1 {
		t.Fatalf("replaced call has %d members, want the 1 carried over", s.MemberCount("c1"))
	}
	call, ok := s.Get("c1")
	if !ok || call.Kind != domain.CallVideo || call.Initiator != "bob" {
		t.Fatalf("record not replaced: %+v", call)
	}
	if got := s.Members("c1", ""); len(got) != 1 || got[0].UserID != "alice" {
		t.Fatalf("carried group = %v, want [alice]", got)
	}
}

func TestAddParticipantToAbsentCall(t *testing.T) {
	s := NewCallStore()
	if s.AddParticipant("nope", member("s1", "alice")) {
		t.Fatal("AddParticipant to absent call must report false")
	}
}

func TestRemoveParticipantDrainDeletes(t *testing.T) {
	s := NewCallStore()
	s.CreateOrReplace(testCall("c1"))

	a := member("s1", "alice")
	b := member("s2", "bob")
	s.AddParticipant("c1", a)
	s.AddParticipant("c1", b)

	remaining, ok := s.RemoveParticipant("c1", a.Conn.ID())
	if !ok || remaining != 1 {
		t.Fatalf("remaining = %d ok = %v, want 1 true", remaining, ok)
	}
	if _, ok := s.Get("c1"); !ok {
		t.Fatal("call must survive while a member remains")
	}

	remaining, ok = s.RemoveParticipant("c1", b.Conn.ID())
	if !ok || remaining != 0 {
		t.Fatalf("remaining = %d ok = %v, want 0 true", remaining, ok)
	}
	if _, ok := s.Get("c1"); ok {
		t.Fatal("drained call record must be removed")
	}
}

func TestMembersExcludes(t *testing.T) {
	s := NewCallStore()
	s.CreateOrReplace(testCall("c1"))

	a := member("s1", "alice")
	b := member("s2", "bob")
	s.AddParticipant("c1", a)
	s.AddParticipant("c1", b)

	got := s.Members("c1", a.Conn.ID())
	if len(got) != 1 || got[0].UserID != "bob" {
		t.Fatalf("Members excluding alice = %v", got)
	}
	if len(s.Members("c1", "")) != 2 {
		t.Fatal("Members with no exclusion should return everyone")
	}
	if s.Members("absent", "") != nil {
		t.Fatal("Members of absent call should be nil")
	}
}

func TestListSnapshots(t *testing.T) {
	s := NewCallStore()
	s.CreateOrReplace(testCall("c1"))
	s.AddParticipant("c1", member("s1", "alice"))
	s.SetState("c1", domain.CallActive)

	list := s.List()
	if len(list) != 1 {
		t.Fatalf("got %d calls, want 1", len(list))
	}
	info := list[0]
	if info.ID != "c1" || info.Kind != domain.CallAudio || info.State != domain.CallActive ||
		info.Initiator != "alice" || info.Joined != 1 {
		t.Fatalf("unexpected snapshot: %+v", info)
	}
}
