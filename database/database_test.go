package database

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	d, err := NewDatabase(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestSessionRoundTrip(t *testing.T) {
	d := openTestDB(t)

	cookies := map[string]string{"cf_clearance": "tok", "sid": "abc"}
	if err := d.SaveSession("acme", cookies, "modern_mac", "ua-string"); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	s, err := d.LoadSession("acme")
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if s == nil {
		t.Fatal("session missing after save")
	}
	if s.Name != "acme" || s.Identity != "modern_mac" || s.UserAgent != "ua-string" {
		t.Errorf("session = %+v", s)
	}
	if s.Cookies["cf_clearance"] != "tok" || s.Cookies["sid"] != "abc" {
		t.Errorf("cookies = %v", s.Cookies)
	}
	if s.CreateTime == 0 || s.UpdateTime == 0 {
		t.Errorf("timestamps not set: %+v", s)
	}
}

func TestSessionOverwriteKeepsCreateTime(t *testing.T) {
	d := openTestDB(t)

	if err := d.SaveSession("acme", map[string]string{"a": "1"}, "modern_windows", "ua1"); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	first, _ := d.LoadSession("acme")

	if err := d.SaveSession("acme", map[string]string{"b": "2"}, "mobile_ios", "ua2"); err != nil {
		t.Fatalf("SaveSession overwrite: %v", err)
	}
	second, _ := d.LoadSession("acme")

	if second.CreateTime != first.CreateTime {
		t.Errorf("create time changed on overwrite: %d -> %d", first.CreateTime, second.CreateTime)
	}
	if second.Identity != "mobile_ios" || second.Cookies["b"] != "2" {
		t.Errorf("overwrite not applied: %+v", second)
	}
	if _, stale := second.Cookies["a"]; stale {
		t.Errorf("overwrite must replace the jar, got %v", second.Cookies)
	}
}

func TestLoadSessionMissing(t *testing.T) {
	d := openTestDB(t)
	s, err := d.LoadSession("ghost")
	if err != nil {
		t.Fatalf("missing session must not error: %v", err)
	}
	if s != nil {
		t.Errorf("session = %+v, want nil", s)
	}
}

func TestDeleteSession(t *testing.T) {
	d := openTestDB(t)
	if err := d.SaveSession("gone", nil, "modern_windows", "ua"); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := d.DeleteSession("gone"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if s, _ := d.LoadSession("gone"); s != nil {
		t.Errorf("session survived delete")
	}
	if err := d.DeleteSession("gone"); err != nil {
		t.Errorf("double delete must be tolerated: %v", err)
	}
}

func TestListSessions(t *testing.T) {
	d := openTestDB(t)
	for _, name := range []string{"beta", "alpha", "gamma"} {
		if err := d.SaveSession(name, nil, "modern_windows", "ua"); err != nil {
			t.Fatalf("SaveSession(%s): %v", name, err)
		}
	}
	sessions, err := d.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("sessions = %d, want 3", len(sessions))
	}
	if sessions[0].Name != "alpha" {
		t.Errorf("index order: first = %s, want alpha", sessions[0].Name)
	}
}
