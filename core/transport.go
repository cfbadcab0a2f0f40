package core

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Noooste/azuretls-client"
	fhttp "github.com/Noooste/fhttp"
	"github.com/go-resty/resty/v2"

	"github.com/titanops/titan/log"
)

const DefaultRequestTimeout = 20 * time.Second

// Response is the transport-agnostic view of an HTTP exchange that the
// classifier and the escalation engine operate on.
type Response struct {
	Status   int
	Headers  http.Header
	Body     string
	Cookies  map[string]string
	FinalURL string
}

// Ok reports whether the final status is a success (2xx).
func (r *Response) Ok() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Header returns a single header value, tolerating a nil response.
func (r *Response) Header(name string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// Cookie returns a response cookie value, tolerating a nil response.
func (r *Response) Cookie(name string) string {
	if r == nil {
		return ""
	}
	return r.Cookies[name]
}

// TransportRequest carries everything a transport needs for one exchange.
// The identity selects the TLS fingerprint the request goes out with.
type TransportRequest struct {
	Method   string
	URL      string
	Headers  map[string]string
	Body     []byte
	Identity IdentityProfile
	Proxy    string
	Cookies  map[string]string
	Timeout  time.Duration
}

// Transport sends one HTTP exchange. Implementations differ only in whether
// the TLS layer impersonates a real browser; the escalation engine picks one
// at construction and never branches on it again.
type Transport interface {
	Send(ctx context.Context, req *TransportRequest) (*Response, error)
	Close()
}

// ImpersonatingTransport sends requests through azuretls with a ClientHello
// and HTTP/2 fingerprint matching the request identity. Sessions are created
// lazily, one per TLS identity and proxy pair, so connection reuse never
// crosses identities or proxies.
type ImpersonatingTransport struct {
	sessions map[string]*azuretls.Session
	mu       sync.Mutex
}

func NewImpersonatingTransport() *ImpersonatingTransport {
	return &ImpersonatingTransport{
		sessions: make(map[string]*azuretls.Session),
	}
}

func (t *ImpersonatingTransport) session(identity IdentityProfile, proxy string) (*azuretls.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// The proxy is part of the cache key: a request that switches proxies
	// must not reuse a connection pinned to the old one.
	key := identity.TLSIdentity + "|" + proxy
	if s, ok := t.sessions[key]; ok {
		return s, nil
	}

	s := azuretls.NewSession()
	switch identity.TLSIdentity {
	case TLSFirefox:
		s.Browser = azuretls.Firefox
	case TLSSafari:
		s.Browser = azuretls.Safari
	case TLSIos:
		s.Browser = azuretls.Ios
	default:
		s.Browser = azuretls.Chrome
		s.GetClientHelloSpec = azuretls.GetLastChromeVersion
	}
	if proxy != "" {
		if err := s.SetProxy(proxy); err != nil {
			s.Close()
			return nil, err
		}
	}
	log.Debug("[transport] new impersonating session: %s", identity.TLSIdentity)
	t.sessions[key] = s
	return s, nil
}

func (t *ImpersonatingTransport) Send(ctx context.Context, req *TransportRequest) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := t.session(req.Identity, req.Proxy)
	if err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	s.SetTimeout(timeout)

	header := fhttp.Header{}
	order := make([]string, 0, len(req.Headers)+2)
	for _, key := range headerOrder(req.Headers) {
		header.Set(key, req.Headers[key])
		order = append(order, strings.ToLower(key))
	}
	if cookie := cookieHeader(req.Cookies); cookie != "" {
		header.Set("Cookie", cookie)
		order = append(order, "cookie")
	}
	header[fhttp.HeaderOrderKey] = order

	var body interface{}
	if len(req.Body) > 0 {
		body = req.Body
	}

	// azuretls requests only carry the session timeout, so cancellation is
	// raced against the call; the abandoned request still dies by timeout.
	type doResult struct {
		resp *azuretls.Response
		err  error
	}
	done := make(chan doResult, 1)
	go func() {
		resp, err := s.Do(&azuretls.Request{
			Method: req.Method,
			Url:    req.URL,
			Header: header,
			Body:   body,
		})
		done <- doResult{resp, err}
	}()

	var resp *azuretls.Response
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		resp = r.resp
	}

	headers := http.Header{}
	for key, vals := range resp.Header {
		headers[http.CanonicalHeaderKey(key)] = vals
	}
	return &Response{
		Status:   resp.StatusCode,
		Headers:  headers,
		Body:     string(resp.Body),
		Cookies:  setCookies(headers),
		FinalURL: resp.Url,
	}, nil
}

func (t *ImpersonatingTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.sessions {
		s.Close()
	}
	t.sessions = make(map[string]*azuretls.Session)
}

// PlainTransport is the non-impersonating fallback built on resty. The TLS
// fingerprint it presents is Go's own, which some targets flag; it exists
// for environments where the impersonation layer is disabled by config.
type PlainTransport struct{}

func NewPlainTransport() *PlainTransport {
	return &PlainTransport{}
}

func (t *PlainTransport) Send(ctx context.Context, req *TransportRequest) (*Response, error) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}

	client := resty.New().SetTimeout(timeout)
	if req.Proxy != "" {
		client.SetProxy(req.Proxy)
	}

	r := client.R().SetContext(ctx).SetHeaders(req.Headers)
	r.SetHeader("User-Agent", req.Identity.UserAgent)
	for name, value := range req.Cookies {
		r.SetCookie(&http.Cookie{Name: name, Value: value})
	}
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(req.Method, req.URL)
	if err != nil {
		return nil, err
	}

	cookies := make(map[string]string)
	for _, c := range resp.Cookies() {
		cookies[c.Name] = c.Value
	}
	return &Response{
		Status:   resp.StatusCode(),
		Headers:  resp.Header(),
		Body:     resp.String(),
		Cookies:  cookies,
		FinalURL: resp.Request.URL,
	}, nil
}

func (t *PlainTransport) Close() {}

func cookieHeader(cookies map[string]string) string {
	if len(cookies) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(cookies))
	for _, name := range sortedKeys(cookies) {
		pairs = append(pairs, name+"="+cookies[name])
	}
	return strings.Join(pairs, "; ")
}

func setCookies(headers http.Header) map[string]string {
	cookies := make(map[string]string)
	fake := http.Response{Header: headers}
	for _, c := range fake.Cookies() {
		cookies[c.Name] = c.Value
	}
	return cookies
}
