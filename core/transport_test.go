package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestResponseHelpers(t *testing.T) {
	var nilResp *Response
	if nilResp.Ok() || nilResp.Header("Server") != "" || nilResp.Cookie("x") != "" {
		t.Error("nil response helpers must be inert")
	}

	resp := &Response{Status: 204}
	if !resp.Ok() {
		t.Error("204 is a success")
	}
	if (&Response{Status: 302}).Ok() {
		t.Error("302 is not a success")
	}
	if resp.Header("Server") != "" {
		t.Error("missing headers must read empty")
	}
}

func TestCookieHeader(t *testing.T) {
	if got := cookieHeader(nil); got != "" {
		t.Errorf("empty jar = %q", got)
	}
	got := cookieHeader(map[string]string{"b": "2", "a": "1"})
	if got != "a=1; b=2" {
		t.Errorf("cookie header = %q, want deterministic a=1; b=2", got)
	}
}

func TestSetCookies(t *testing.T) {
	headers := http.Header{}
	headers.Add("Set-Cookie", "cf_clearance=tok; Path=/; HttpOnly")
	headers.Add("Set-Cookie", "sid=abc")
	cookies := setCookies(headers)
	if cookies["cf_clearance"] != "tok" || cookies["sid"] != "abc" {
		t.Errorf("cookies = %v", cookies)
	}
}

func TestPlainTransportSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "Macintosh") {
			t.Errorf("User-Agent = %q, want identity value", ua)
		}
		if c, err := r.Cookie("session"); err != nil || c.Value != "s1" {
			t.Errorf("session cookie not sent")
		}
		http.SetCookie(w, &http.Cookie{Name: "fresh", Value: "f1"})
		w.Header().Set("Server", "testd")
		w.WriteHeader(200)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	identity, _ := Lookup("modern_mac")
	tr := NewPlainTransport()
	defer tr.Close()

	resp, err := tr.Send(context.Background(), &TransportRequest{
		Method:   http.MethodGet,
		URL:      srv.URL,
		Identity: identity,
		Cookies:  map[string]string{"session": "s1"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Status != 200 || resp.Body != "hello" {
		t.Errorf("response = %d %q", resp.Status, resp.Body)
	}
	if resp.Header("Server") != "testd" {
		t.Errorf("Server header = %q", resp.Header("Server"))
	}
	if resp.Cookie("fresh") != "f1" {
		t.Errorf("response cookie missing: %v", resp.Cookies)
	}
}

func TestImpersonatingTransportContextCanceled(t *testing.T) {
	tr := NewImpersonatingTransport()
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	identity, _ := Lookup("modern_windows")
	_, err := tr.Send(ctx, &TransportRequest{
		Method:   http.MethodGet,
		URL:      "https://target.test/",
		Identity: identity,
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestImpersonatingSessionCacheKeyedByProxy(t *testing.T) {
	tr := NewImpersonatingTransport()
	defer tr.Close()

	identity, _ := Lookup("modern_windows")
	direct, err := tr.session(identity, "")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	proxied, err := tr.session(identity, "http://127.0.0.1:8888")
	if err != nil {
		t.Fatalf("session with proxy: %v", err)
	}
	if direct == proxied {
		t.Error("same session reused across differing proxies")
	}

	again, err := tr.session(identity, "")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if again != direct {
		t.Error("identical identity+proxy must hit the cache")
	}
}

func TestPlainTransportPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(201)
	}))
	defer srv.Close()

	identity, _ := Lookup("modern_windows")
	tr := NewPlainTransport()
	resp, err := tr.Send(context.Background(), &TransportRequest{
		Method:   http.MethodPost,
		URL:      srv.URL,
		Body:     []byte(`{"k":"v"}`),
		Identity: identity,
		Headers:  map[string]string{"Content-Type": "application/json"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Status != 201 {
		t.Errorf("status = %d", resp.Status)
	}
}
