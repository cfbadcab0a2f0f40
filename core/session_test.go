package core

import (
	"testing"
)

func TestSessionCookieIsolation(t *testing.T) {
	s := NewSessionState("modern_windows")
	s.SetCookie("a", "1")

	jar := s.Cookies()
	jar["a"] = "tampered"
	jar["b"] = "2"

	if got := s.Cookies()["a"]; got != "1" {
		t.Errorf("session jar mutated through copy: %q", got)
	}
	if _, ok := s.Cookies()["b"]; ok {
		t.Error("copy write leaked into session")
	}
}

func TestSessionMergeCookies(t *testing.T) {
	s := NewSessionState("modern_windows")
	s.SetCookie("keep", "old")
	s.MergeCookies(map[string]string{"keep": "new", "extra": "x"})

	jar := s.Cookies()
	if jar["keep"] != "new" || jar["extra"] != "x" {
		t.Errorf("jar = %v", jar)
	}

	s.MergeCookies(nil)
	if len(s.Cookies()) != 2 {
		t.Errorf("nil merge changed jar: %v", s.Cookies())
	}
}

func TestSessionReplaceCookies(t *testing.T) {
	s := NewSessionState("modern_windows")
	s.SetCookie("stale", "v")
	s.ReplaceCookies(map[string]string{"fresh": "f"})

	jar := s.Cookies()
	if _, ok := jar["stale"]; ok {
		t.Error("replace kept a stale cookie")
	}
	if jar["fresh"] != "f" {
		t.Errorf("jar = %v", jar)
	}
}

func TestSessionUserAgent(t *testing.T) {
	s := NewSessionState("modern_windows")
	s.SetUserAgent("ua-1")
	s.SetUserAgent("")
	if got := s.UserAgent(); got != "ua-1" {
		t.Errorf("empty user agent must be ignored, got %q", got)
	}
}

func TestSessionIdentity(t *testing.T) {
	s := NewSessionState("modern_windows")
	if s.Identity() != "modern_windows" {
		t.Errorf("identity = %s", s.Identity())
	}
	s.SetIdentity("mobile_ios")
	if s.Identity() != "mobile_ios" {
		t.Errorf("identity = %s", s.Identity())
	}
}
