package core

import (
	"sync"
	"time"
)

// SessionState is the mutable identity of one scraping session: the cookie
// jar shared by every escalation stage and the user agent the session last
// presented. Each successful stage that yields new cookies merges them here
// so the next stage continues as the same synthetic visitor.
type SessionState struct {
	cookies    map[string]string
	userAgent  string
	identity   string
	createTime time.Time
	mu         sync.Mutex
}

func NewSessionState(identity_name string) *SessionState {
	return &SessionState{
		cookies:    make(map[string]string),
		identity:   identity_name,
		createTime: time.Now(),
	}
}

// Cookies returns a copy of the current cookie set.
func (s *SessionState) Cookies() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.cookies))
	for name, value := range s.cookies {
		out[name] = value
	}
	return out
}

// MergeCookies folds newly issued cookies into the session.
func (s *SessionState) MergeCookies(cookies map[string]string) {
	if len(cookies) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, value := range cookies {
		s.cookies[name] = value
	}
}

// SetCookie stores a single cookie, typically a clearance token.
func (s *SessionState) SetCookie(name string, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies[name] = value
}

// ReplaceCookies swaps the whole cookie set, used when restoring a session.
func (s *SessionState) ReplaceCookies(cookies map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies = make(map[string]string, len(cookies))
	for name, value := range cookies {
		s.cookies[name] = value
	}
}

func (s *SessionState) UserAgent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userAgent
}

func (s *SessionState) SetUserAgent(ua string) {
	if ua == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userAgent = ua
}

func (s *SessionState) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *SessionState) SetIdentity(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = name
}

// Age returns how long the session has existed.
func (s *SessionState) Age() time.Duration {
	return time.Since(s.createTime)
}
