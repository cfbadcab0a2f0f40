package core

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/titanops/titan/database"
	"github.com/titanops/titan/log"
)

// challengeScriptSolver is the JS-challenge solver stage seen by the engine.
type challengeScriptSolver interface {
	IsAvailable() bool
	Solve(ctx context.Context, target_url string, r string, t string, cookies map[string]string) (*JSDResult, error)
}

// Scraper is the escalation engine: one synthetic visitor working one
// session, walking the ladder probe -> classify -> dispatch for every
// Bypass call and reporting each outcome back to the learner.
type Scraper struct {
	cfg        *Config
	transport  Transport
	browser    BrowserFetcher
	jsd        challengeScriptSolver
	provider   CaptchaProvider
	learner    *Learner
	identities *IdentityManager
	stealth    *StealthManager
	session    *SessionState
	journal    *AttemptJournal
	db         *database.Database
}

// NewScraper wires the engine from config. Configuration defects (unknown
// identity profile, provider without credentials) fail here, before any
// network traffic happens.
func NewScraper(cfg *Config) (*Scraper, error) {
	identities, err := NewIdentityManager(cfg.GetDefaultProfile())
	if err != nil {
		return nil, err
	}

	provider, err := NewCaptchaProvider(cfg.GetCaptcha())
	if err != nil {
		return nil, err
	}

	stealth := NewStealthManager()

	var transport Transport
	if cfg.GetImpersonation() {
		transport = NewImpersonatingTransport()
	} else {
		log.Warning("tls impersonation disabled, requests will carry the stock go fingerprint")
		transport = NewPlainTransport()
	}

	s := &Scraper{
		cfg:        cfg,
		transport:  transport,
		browser:    NewRodBrowser(cfg.GetBrowser().Headless, stealth, provider),
		jsd:        NewJSDSolver(cfg.GetSolverPath()),
		provider:   provider,
		learner:    NewLearner(),
		identities: identities,
		stealth:    stealth,
		session:    NewSessionState(cfg.GetDefaultProfile()),
	}

	if path := cfg.GetSession().DBPath; path != "" {
		db, err := database.NewDatabase(path)
		if err != nil {
			return nil, err
		}
		s.db = db
		s.journal = NewAttemptJournal(filepath.Join(filepath.Dir(path), "attempts"))
	}
	return s, nil
}

// UseLearner swaps in a shared learner so multiple scrapers can pool their
// per-domain knowledge. The learner is safe for concurrent use.
func (s *Scraper) UseLearner(l *Learner) {
	if l != nil {
		s.learner = l
	}
}

// Learner exposes the engine's learner, mainly for inspection.
func (s *Scraper) Learner() *Learner {
	return s.learner
}

// SetDisguise atomically switches the active identity profile.
func (s *Scraper) SetDisguise(name string) error {
	if err := s.identities.Activate(name); err != nil {
		return err
	}
	s.session.SetIdentity(name)
	log.Info("disguise set to: %s", name)
	return nil
}

// Close releases transport sessions and the session store.
func (s *Scraper) Close() {
	s.transport.Close()
	if s.db != nil {
		s.db.Close()
	}
}

type requestOptions struct {
	identity *IdentityProfile
	headers  map[string]string
	timeout  time.Duration
}

// RequestOption customizes a single pass-through request.
type RequestOption func(*requestOptions) error

// WithIdentity sends one request as a different catalog profile without
// changing the session's active identity.
func WithIdentity(name string) RequestOption {
	return func(o *requestOptions) error {
		p, ok := Lookup(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownProfile, name)
		}
		o.identity = &p
		return nil
	}
}

// WithHeaders adds caller headers to the request.
func WithHeaders(headers map[string]string) RequestOption {
	return func(o *requestOptions) error {
		o.headers = headers
		return nil
	}
}

// WithTimeout bounds the request.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) error {
		o.timeout = d
		return nil
	}
}

// Get issues a pass-through GET with the session identity and cookies.
func (s *Scraper) Get(ctx context.Context, target string, opts ...RequestOption) (*Response, error) {
	return s.do(ctx, http.MethodGet, target, nil, opts...)
}

// Post issues a pass-through POST with the session identity and cookies.
func (s *Scraper) Post(ctx context.Context, target string, body []byte, opts ...RequestOption) (*Response, error) {
	return s.do(ctx, http.MethodPost, target, body, opts...)
}

func (s *Scraper) do(ctx context.Context, method string, target string, body []byte, opts ...RequestOption) (*Response, error) {
	o := &requestOptions{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	identity := s.identities.Active()
	if o.identity != nil {
		identity = *o.identity
	}
	return s.request(ctx, method, target, body, identity, o.headers, o.timeout)
}

// request is the single exit point to the transport: stealth headers, the
// identity bundle and the session cookie jar all applied together.
func (s *Scraper) request(ctx context.Context, method string, target string, body []byte, identity IdentityProfile, headers map[string]string, timeout time.Duration) (*Response, error) {
	resp, err := s.transport.Send(ctx, &TransportRequest{
		Method:   method,
		URL:      target,
		Headers:  s.stealth.Transform(headers, identity),
		Body:     body,
		Identity: identity,
		Proxy:    s.cfg.GetProxy(),
		Cookies:  s.session.Cookies(),
		Timeout:  timeout,
	})
	if err != nil {
		return nil, err
	}
	s.session.MergeCookies(resp.Cookies)
	return resp, nil
}

// Bypass fetches a URL, classifying whatever blocks it and escalating
// through the ladder until something produces a response. Exactly one
// attempt is recorded per call, successful or not.
func (s *Scraper) Bypass(ctx context.Context, target string) (*Response, error) {
	domain := domainOf(target)
	sctx := CurrentContext()
	strategy := s.learner.SelectStrategy(domain, sctx)
	sctx.BehaviorProfile = strategy.Config.BehaviorProfile
	log.Info("bypass: analyzing %s (strategy: %s, confidence: %.2f)", target, strategy.Name, strategy.Confidence)

	recorded := false
	record := func(label Protection, success bool, elapsed time.Duration, status int) {
		if recorded {
			return
		}
		recorded = true
		s.recordAttempt(domain, label, strategy, sctx, success, elapsed, status)
	}

	defer func() {
		if r := recover(); r != nil {
			record(ProtectionUnknown, false, 0, 0)
			panic(r)
		}
	}()

	// PROBE: one cheap direct request. A transport failure is itself a
	// classification signal, not an error.
	stageStart := time.Now()
	probe, err := s.request(ctx, http.MethodGet, target, nil, s.identities.Active(), nil, 0)
	if err != nil {
		log.Debug("bypass: probe failed (%v), classifying as unknown", err)
		probe = nil
	}

	label := DetectProtection(probe)
	log.Info("bypass: detected protection = %s", label)

	if label == ProtectionNone {
		record(label, probe.Ok(), time.Since(stageStart), probe.Status)
		return probe, nil
	}

	switch label {
	case ProtectionCloudflareChallenge, ProtectionCloudflareGeneric:
		if resp, ok := s.solveWithScript(ctx, target, label, record); ok {
			return resp, nil
		}

	case ProtectionAWSWAF, ProtectionGeneric403:
		if resp, ok := s.rotateTLS(ctx, target, label, record); ok {
			return resp, nil
		}
	}

	// Everything else, and every failed cheaper stage, ends up here. Once
	// entered there is no falling back to a cheaper stage in this call.
	resp, err := s.browserFallback(ctx, target, label, record)
	if err == nil {
		return resp, nil
	}

	// Ladder exhausted: hand back whatever the probe saw, or the failure.
	record(label, false, 0, statusOf(probe))
	if probe != nil {
		log.Warning("bypass: all stages failed, returning probe response (status %d)", probe.Status)
		return probe, nil
	}
	return nil, err
}

// solveWithScript runs the JS-challenge solver stage. Reports ok=true only
// when the stage terminated the call.
func (s *Scraper) solveWithScript(ctx context.Context, target string, label Protection, record func(Protection, bool, time.Duration, int)) (*Response, bool) {
	if !s.jsd.IsAvailable() {
		log.Debug("bypass: jsd solver unavailable, skipping stage")
		return nil, false
	}

	stageStart := time.Now()
	result, err := s.jsd.Solve(ctx, target, "", "", s.session.Cookies())
	if err != nil || !result.Success || result.CfClearance == "" {
		if err != nil {
			log.Warning("bypass: jsd stage failed: %v", err)
		}
		return nil, false
	}

	s.session.SetCookie("cf_clearance", result.CfClearance)
	log.Success("bypass: clearance cookie obtained, retrying direct")

	resp, err := s.request(ctx, http.MethodGet, target, nil, s.identities.Active(), nil, 0)
	if err != nil {
		log.Warning("bypass: post-clearance request failed: %v", err)
		return nil, false
	}
	record(label, resp.Ok(), time.Since(stageStart), resp.Status)
	return resp, true
}

// rotateTLS walks the fixed list of alternate TLS identities, stopping at
// the first success. The winning identity becomes the session identity so
// every later layer stays consistent with the fingerprint that worked.
func (s *Scraper) rotateTLS(ctx context.Context, target string, label Protection, record func(Protection, bool, time.Duration, int)) (*Response, bool) {
	active := s.identities.Active()
	stageStart := time.Now()
	for _, name := range tlsRotationOrder {
		profile, ok := Lookup(name)
		if !ok || profile.Name == active.Name {
			continue
		}
		log.Info("bypass: trying tls identity %s", profile.TLSIdentity)
		resp, err := s.request(ctx, http.MethodGet, target, nil, profile, nil, 0)
		if err != nil {
			log.Warning("bypass: tls identity %s failed: %v", profile.TLSIdentity, err)
			continue
		}
		if resp.Ok() {
			log.Success("bypass: success with tls identity %s", profile.TLSIdentity)
			s.identities.Activate(name)
			s.session.SetIdentity(name)
			record(label, true, time.Since(stageStart), resp.Status)
			return resp, true
		}
	}
	return nil, false
}

// browserFallback is the last rung: full rendering with the active identity
// bundle, its fingerprint overrides injected, and the session cookie jar.
func (s *Scraper) browserFallback(ctx context.Context, target string, label Protection, record func(Protection, bool, time.Duration, int)) (*Response, error) {
	if !s.browser.Available() {
		log.Warning("bypass: browser driver unavailable, cannot escalate further")
		return nil, fmt.Errorf("%w: browser driver unavailable", ErrBrowserFailed)
	}

	timeout := time.Duration(s.cfg.GetBrowser().TimeoutSecs) * time.Second
	profile := s.identities.Active()
	stageStart := time.Now()

	result, err := s.browser.Fetch(ctx, &BrowserRequest{
		URL:            target,
		Identity:       profile,
		Proxy:          s.cfg.GetProxy(),
		Cookies:        s.session.Cookies(),
		InjectScripts:  []string{s.identities.InjectionScript()},
		Timeout:        timeout,
		BlockResources: s.cfg.GetBrowser().BlockResources,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserFailed, err)
	}

	s.session.MergeCookies(result.Cookies)
	s.session.SetUserAgent(result.UserAgent)

	resp := &Response{
		Status:   result.Status,
		Headers:  http.Header{"Content-Type": []string{"text/html"}},
		Body:     result.Content,
		Cookies:  result.Cookies,
		FinalURL: result.FinalURL,
	}
	record(label, resp.Ok(), time.Since(stageStart), resp.Status)
	return resp, nil
}

func (s *Scraper) recordAttempt(domain string, label Protection, strategy *SelectedStrategy, sctx *StrategyContext, success bool, elapsed time.Duration, status int) {
	profile := s.identities.Active()
	now := time.Now()
	if s.journal != nil {
		s.journal.Append(&JournalEntry{
			Timestamp:  now,
			Domain:     domain,
			Protection: string(label),
			Strategy:   strategy.Name,
			Identity:   profile.Name,
			Success:    success,
			StatusCode: status,
			DurationMs: elapsed.Milliseconds(),
		})
	}
	s.learner.RecordAttempt(&Attempt{
		Timestamp:           now,
		Domain:              domain,
		ChallengeType:       string(label),
		Strategy:            strategy.Name,
		Success:             success,
		ResponseTime:        elapsed.Seconds(),
		StatusCode:          status,
		TLSFingerprint:      profile.TLSIdentity,
		CanvasFingerprint:   profile.Name,
		WebGLFingerprint:    profile.GPURenderer,
		DelayUsed:           elapsed.Seconds() * strategy.Config.TimingMultiplier,
		BehaviorProfile:     strategy.Config.BehaviorProfile,
		DetectionConfidence: 1.0,
		AntiDetection:       strategy.Config.AntiDetection,
		TimeOfDay:           sctx.TimeOfDay,
		DayOfWeek:           sctx.DayOfWeek,
		SessionAge:          0, // always zero, kept for vector shape compatibility
	})
}

// SaveSession persists the session cookie jar under the given name.
func (s *Scraper) SaveSession(name string) error {
	if s.db == nil {
		return fmt.Errorf("session store not configured")
	}
	return s.db.SaveSession(name, s.session.Cookies(), s.session.Identity(), s.session.UserAgent())
}

// LoadSession restores a previously saved cookie jar and identity. A session
// that was never saved is not an error; the current state is kept.
func (s *Scraper) LoadSession(name string) error {
	if s.db == nil {
		return fmt.Errorf("session store not configured")
	}
	stored, err := s.db.LoadSession(name)
	if err != nil {
		return err
	}
	if stored == nil {
		log.Debug("session %s not found, starting fresh", name)
		return nil
	}
	s.session.ReplaceCookies(stored.Cookies)
	s.session.SetUserAgent(stored.UserAgent)
	if stored.Identity != "" {
		if err := s.SetDisguise(stored.Identity); err != nil {
			return err
		}
	}
	log.Info("session %s restored (%d cookies)", name, len(stored.Cookies))
	return nil
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}

func statusOf(resp *Response) int {
	if resp == nil {
		return 0
	}
	return resp.Status
}
