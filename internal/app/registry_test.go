package app

import (
	"testing"
)

func TestUnregisterExactMatchOnly(t *testing.T) {
	r := NewRegistry()

	old := &Session{Conn: &fakeConn{id: "s1"}, UserID: "alice"}
	r.Register(old)

	fresh := &Session{Conn: &fakeConn{id: "s2"}, UserID: "alice"}
	r.Register(fresh)

	// The stale connection disconnects after the overwrite; the fresh
	// binding must survive.
	r.Unregister(old)

	sess, ok := r.Resolve("alice")
	if !ok {
		t.Fatal("fresh registration was evicted by a stale unregister")
	}
	if sess.Conn.ID() != "s2" {
		t.Fatalf("resolve(alice) = conn %s, want s2", sess.Conn.ID())
	}

	r.Unregister(fresh)
	if _, ok := r.Resolve("alice"); ok {
		t.Fatal("exact-match unregister failed to remove the entry")
	}
}

func TestRegisterRebindReleasesOldIdentity(t *testing.T) {
	r := NewRegistry()

	sess := &Session{Conn: &fakeConn{id: "s1"}, UserID: "alice"}
	r.Register(sess)

	// The same connection re-registers under a new id; the old one must not
	// keep resolving to it.
	sess.UserID = "bob"
	r.Register(sess)

	if _, ok := r.Resolve("alice"); ok {
		t.Fatal("old identity still resolvable after rebind")
	}
	got, ok := r.Resolve("bob")
	if !ok || got.Conn.ID() != "s1" {
		t.Fatalf("resolve(bob) = %v, want conn s1", got)
	}

	r.Unregister(sess)
	if users := r.Users(); len(users) != 0 {
		t.Fatalf("users after unregister = %v, want none", users)
	}
}

func TestUnregisterUnknownConnection(t *testing.T) {
	r := NewRegistry()
	// Must be a no-op, not a panic.
	r.Unregister(&Session{Conn: &fakeConn{id: "ghost"}, UserID: "nobody"})
}

func TestUsersSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Register(&Session{Conn: &fakeConn{id: "s1"}, UserID: "alice"})
	r.Register(&Session{Conn: &fakeConn{id: "s2"}, UserID: "bob"})

	users := r.Users()
	if len(users) != 2 {
		t.Fatalf("got %d users, want 2", len(users))
	}
	seen := map[string]bool{}
	for _, u := range users {
		seen[string(u)] = true
	}
	if !seen["alice"] || !seen["bob"] {
		t.Fatalf("snapshot missing users: %v", users)
	}
}
