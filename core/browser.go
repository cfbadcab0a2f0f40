package core

import (
	"context"
	"math/rand"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/titanops/titan/log"
)

const (
	DefaultBrowserTimeout = 30 * time.Second
	challengePollInterval = time.Second
)

// BrowserRequest is one full-rendering fetch: the identity to present, the
// session cookies to carry over, and the scripts to inject before any page
// script runs.
type BrowserRequest struct {
	URL            string
	Identity       IdentityProfile
	Proxy          string
	Cookies        map[string]string
	InjectScripts  []string
	Timeout        time.Duration
	BlockResources bool
}

// BrowserResult is what the browser stage reports back for session merging.
type BrowserResult struct {
	Content   string
	Status    int
	Cookies   map[string]string
	UserAgent string
	FinalURL  string
}

// BrowserFetcher is the browser-driver collaborator. Availability gates the
// BROWSER_FALLBACK stage; an unavailable driver skips it, never aborts.
type BrowserFetcher interface {
	Available() bool
	Fetch(ctx context.Context, req *BrowserRequest) (*BrowserResult, error)
}

// RodBrowser drives a fresh headless Chrome per request. No warm pools, no
// shared browser state - a fresh instance per fetch is slower but cannot
// leak identity between calls.
type RodBrowser struct {
	headless bool
	stealth  *StealthManager
	provider CaptchaProvider
}

func NewRodBrowser(headless bool, stealth *StealthManager, provider CaptchaProvider) *RodBrowser {
	return &RodBrowser{
		headless: headless,
		stealth:  stealth,
		provider: provider,
	}
}

// Available reports whether a chromium binary can be resolved.
func (b *RodBrowser) Available() bool {
	_, has := launcher.LookPath()
	return has
}

// Fetch renders the page, loops on challenge markers until they clear or the
// timeout elapses, and reports the final content, cookies and user agent.
func (b *RodBrowser) Fetch(ctx context.Context, req *BrowserRequest) (result *BrowserResult, err error) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = DefaultBrowserTimeout
	}

	l := launcher.New().
		Headless(b.headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-infobars", "").
		Set("disable-dev-shm-usage", "").
		Set("window-size", b.stealth.BrowserArgs(req.Identity)["window-size"])

	if os.Geteuid() == 0 {
		l = l.NoSandbox(true)
	}
	if req.Proxy != "" {
		l = l.Proxy(req.Proxy)
	}

	wsURL, err := l.Launch()
	if err != nil {
		return nil, err
	}
	browser := rod.New().ControlURL(wsURL)
	if err := browser.Connect(); err != nil {
		return nil, err
	}
	defer browser.MustClose()

	err = rod.Try(func() {
		result = b.fetch(ctx, browser, req, timeout)
	})
	if err != nil {
		log.Warning("[browser] fetch failed: %v", err)
		return nil, err
	}
	return result, nil
}

func (b *RodBrowser) fetch(ctx context.Context, browser *rod.Browser, req *BrowserRequest, timeout time.Duration) *BrowserResult {
	page := browser.MustPage().Context(ctx)

	page.MustSetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent: req.Identity.UserAgent,
		Platform:  req.Identity.Platform,
	})
	page.MustSetViewport(req.Identity.ViewportWidth, req.Identity.ViewportHeight, 1, false)

	if len(req.Cookies) > 0 {
		host := hostOf(req.URL)
		params := make([]*proto.NetworkCookieParam, 0, len(req.Cookies))
		for name, value := range req.Cookies {
			params = append(params, &proto.NetworkCookieParam{
				Name:   name,
				Value:  value,
				Domain: host,
				Path:   "/",
			})
		}
		page.MustSetCookies(params...)
	}

	for _, script := range b.stealth.StealthScripts(req.Identity) {
		page.MustEvalOnNewDocument(script)
	}
	for _, script := range req.InjectScripts {
		page.MustEvalOnNewDocument(script)
	}

	if req.BlockResources {
		router := page.HijackRequests()
		router.MustAdd("*", func(hctx *rod.Hijack) {
			switch hctx.Request.Type() {
			case proto.NetworkResourceTypeImage,
				proto.NetworkResourceTypeStylesheet,
				proto.NetworkResourceTypeFont,
				proto.NetworkResourceTypeMedia:
				hctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			default:
				hctx.ContinueRequest(&proto.FetchContinueRequest{})
			}
		})
		go router.Run()
		defer router.MustStop()
	}

	log.Info("[browser] navigating to %s", req.URL)
	page.Timeout(timeout).MustNavigate(req.URL).MustWaitLoad()
	b.wiggleMouse(page)

	cleared := b.challengeLoop(ctx, page, timeout)

	result := &BrowserResult{
		Content: page.MustHTML(),
		Status:  200,
		Cookies: make(map[string]string),
	}
	if !cleared {
		// Challenge markers never went away; report the stage as blocked.
		result.Status = 503
	}
	for _, c := range page.MustCookies() {
		result.Cookies[c.Name] = c.Value
	}
	result.UserAgent = page.MustEval(`() => navigator.userAgent`).Str()
	result.FinalURL = page.MustInfo().URL
	return result
}

// challengeLoop polls page content at ~1s until the challenge markers
// disappear or the timeout elapses, attempting embedded Turnstile and
// reCAPTCHA solves along the way.
func (b *RodBrowser) challengeLoop(ctx context.Context, page *rod.Page, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false
		}
		content := strings.ToLower(page.MustHTML())
		if !strings.Contains(content, "just a moment") && !strings.Contains(content, "checking your browser") {
			b.trySolveEmbedded(ctx, page, content)
			return true
		}

		// Still on an interstitial. A visible Turnstile widget sometimes
		// needs a click before it verifies.
		if has, el, _ := page.Has(`iframe[src*='challenges.cloudflare.com'], .cf-turnstile`); has {
			log.Debug("[browser] turnstile widget present, clicking")
			_ = el.Click(proto.InputMouseButtonLeft, 1)
		}
		b.wiggleMouse(page)
		time.Sleep(challengePollInterval)
	}
	log.Warning("[browser] challenge did not clear within %v", timeout)
	return false
}

// trySolveEmbedded handles captchas embedded in an otherwise loaded page.
func (b *RodBrowser) trySolveEmbedded(ctx context.Context, page *rod.Page, content string) {
	if b.provider == nil {
		return
	}
	pageURL := page.MustInfo().URL

	if strings.Contains(content, "recaptcha") {
		if siteKey, ok := ExtractRecaptchaSiteKey(content); ok {
			log.Info("[browser] reCAPTCHA detected, solving via %s", b.provider.Name())
			token, err := b.provider.SolveRecaptchaV2(ctx, siteKey, pageURL)
			if err != nil {
				log.Warning("[browser] reCAPTCHA solve failed: %v", err)
			} else if token != "" {
				page.MustEval(`(token) => {
					const el = document.getElementById('g-recaptcha-response');
					if (el) { el.innerHTML = token; }
					if (window.onSuccess) { window.onSuccess(token); }
				}`, token)
				log.Success("[browser] reCAPTCHA token injected")
			}
		}
	}

	if strings.Contains(content, "cf-turnstile") || strings.Contains(content, "turnstile") {
		if siteKey, ok := ExtractTurnstileSiteKey(content); ok {
			log.Info("[browser] turnstile widget detected, solving via %s", b.provider.Name())
			token, err := b.provider.SolveTurnstile(ctx, siteKey, pageURL)
			if err != nil {
				log.Warning("[browser] turnstile solve failed: %v", err)
			} else if token != "" {
				page.MustEval(`(token) => {
					const el = document.querySelector('input[name="cf-turnstile-response"]');
					if (el) { el.value = token; }
				}`, token)
				log.Success("[browser] turnstile token injected")
			}
		}
	}
}

// wiggleMouse makes a few randomized movements to satisfy heuristics that
// flag a perfectly still cursor.
func (b *RodBrowser) wiggleMouse(page *rod.Page) {
	for i := 0; i < 3; i++ {
		x := float64(100 + rand.Intn(700))
		y := float64(100 + rand.Intn(500))
		if err := page.Mouse.MoveLinear(proto.Point{X: x, Y: y}, 10); err != nil {
			return
		}
		time.Sleep(time.Duration(100+rand.Intn(200)) * time.Millisecond)
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
