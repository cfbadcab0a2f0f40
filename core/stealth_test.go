package core

import (
	"strings"
	"testing"
)

func TestTransformPinsUserAgent(t *testing.T) {
	s := NewStealthManager()
	identity, _ := Lookup("modern_mac")

	out := s.Transform(map[string]string{
		"User-Agent": "curl/8.0",
		"X-Custom":   "yes",
	}, identity)

	if out["User-Agent"] != identity.UserAgent {
		t.Errorf("User-Agent = %q, want identity value", out["User-Agent"])
	}
	if out["X-Custom"] != "yes" {
		t.Errorf("caller header dropped")
	}
	for _, name := range []string{"Accept", "Accept-Language", "Accept-Encoding", "Connection"} {
		if out[name] == "" {
			t.Errorf("default header %s missing", name)
		}
	}
}

func TestTransformKeepsCallerDefaults(t *testing.T) {
	s := NewStealthManager()
	identity, _ := Lookup("modern_windows")
	out := s.Transform(map[string]string{"Accept-Language": "de-DE"}, identity)
	if out["Accept-Language"] != "de-DE" {
		t.Errorf("caller Accept-Language overridden: %q", out["Accept-Language"])
	}
}

func TestHeaderOrder(t *testing.T) {
	headers := map[string]string{
		"Accept":      "*/*",
		"User-Agent":  "x",
		"X-Zcustom":   "1",
		"Connection":  "keep-alive",
		"X-Acustom":   "2",
	}
	order := headerOrder(headers)
	if len(order) != len(headers) {
		t.Fatalf("order lost headers: %v", order)
	}
	idx := make(map[string]int, len(order))
	for i, name := range order {
		idx[name] = i
	}
	if !(idx["Connection"] < idx["User-Agent"] && idx["User-Agent"] < idx["Accept"]) {
		t.Errorf("browser order violated: %v", order)
	}
	if !(idx["X-Acustom"] < idx["X-Zcustom"]) {
		t.Errorf("unknown headers not lexical: %v", order)
	}
	if idx["X-Acustom"] < idx["Accept"] {
		t.Errorf("unknown headers must trail known ones: %v", order)
	}
}

func TestStealthScriptsCarryIdentityGPU(t *testing.T) {
	s := NewStealthManager()
	identity, _ := Lookup("modern_linux_firefox")
	joined := strings.Join(s.StealthScripts(identity), "\n")
	if !strings.Contains(joined, identity.GPUVendor) || !strings.Contains(joined, identity.GPURenderer) {
		t.Errorf("stealth scripts missing identity GPU values")
	}
	if !strings.Contains(joined, "webdriver") {
		t.Errorf("webdriver hiding script missing")
	}
}

func TestBrowserArgsWindowSize(t *testing.T) {
	s := NewStealthManager()
	identity, _ := Lookup("mobile_ios")
	args := s.BrowserArgs(identity)
	if args["window-size"] != "390,844" {
		t.Errorf("window-size = %q, want 390,844", args["window-size"])
	}
	if _, ok := args["disable-blink-features"]; !ok {
		t.Errorf("automation-controlled blink flag missing")
	}
}
