package core

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/titanops/titan/log"
)

var captchaPollInterval = 5 * time.Second

const captchaPollLimit = 60

// CaptchaProvider is the capability interface over external challenge
// solving services. One implementation per backend, selected by config.
type CaptchaProvider interface {
	Name() string
	SolveTurnstile(ctx context.Context, site_key string, page_url string) (string, error)
	SolveRecaptchaV2(ctx context.Context, site_key string, page_url string) (string, error)
}

// CaptchaConfig selects and authenticates a provider backend.
type CaptchaConfig struct {
	Provider string `mapstructure:"provider" json:"provider" yaml:"provider"`
	APIKey   string `mapstructure:"api_key" json:"api_key" yaml:"api_key"`
}

// NewCaptchaProvider builds the configured backend. A provider selected
// without credentials is a setup defect and fails fast.
func NewCaptchaProvider(cfg *CaptchaConfig) (CaptchaProvider, error) {
	if cfg == nil || cfg.Provider == "" {
		return nil, nil
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoAPIKey, cfg.Provider)
	}
	switch cfg.Provider {
	case "2captcha":
		return &twoCaptcha{apiKey: cfg.APIKey, baseURL: "https://2captcha.com"}, nil
	case "capmonster":
		return &taskAPIProvider{name: "capmonster", apiKey: cfg.APIKey, baseURL: "https://api.capmonster.cloud"}, nil
	case "anticaptcha":
		return &taskAPIProvider{name: "anticaptcha", apiKey: cfg.APIKey, baseURL: "https://api.anti-captcha.com"}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
}

// twoCaptcha speaks the classic in.php/res.php form API.
type twoCaptcha struct {
	apiKey  string
	baseURL string
}

func (p *twoCaptcha) Name() string { return "2captcha" }

func (p *twoCaptcha) SolveTurnstile(ctx context.Context, site_key string, page_url string) (string, error) {
	return p.solve(ctx, "turnstile", map[string]string{"sitekey": site_key, "pageurl": page_url})
}

func (p *twoCaptcha) SolveRecaptchaV2(ctx context.Context, site_key string, page_url string) (string, error) {
	return p.solve(ctx, "userrecaptcha", map[string]string{"googlekey": site_key, "pageurl": page_url})
}

type twoCaptchaResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

func (p *twoCaptcha) solve(ctx context.Context, method string, params map[string]string) (string, error) {
	client := resty.New().SetBaseURL(p.baseURL).SetTimeout(30 * time.Second)

	form := map[string]string{"key": p.apiKey, "method": method, "json": "1"}
	for k, v := range params {
		form[k] = v
	}

	var submit twoCaptchaResponse
	_, err := client.R().SetContext(ctx).SetFormData(form).SetResult(&submit).Post("/in.php")
	if err != nil {
		return "", err
	}
	if submit.Status != 1 {
		return "", fmt.Errorf("2captcha submit error: %s", submit.Request)
	}
	log.Debug("[captcha] 2captcha challenge submitted (id: %s)", submit.Request)

	for i := 0; i < captchaPollLimit; i++ {
		if err := sleepCtx(ctx, captchaPollInterval); err != nil {
			return "", err
		}
		var poll twoCaptchaResponse
		_, err := client.R().SetContext(ctx).
			SetQueryParams(map[string]string{"key": p.apiKey, "action": "get", "id": submit.Request, "json": "1"}).
			SetResult(&poll).
			Get("/res.php")
		if err != nil {
			return "", err
		}
		if poll.Status == 1 {
			return poll.Request, nil
		}
		if poll.Request != "CAPCHA_NOT_READY" {
			return "", fmt.Errorf("2captcha poll error: %s", poll.Request)
		}
	}
	return "", fmt.Errorf("2captcha: solve timed out")
}

// taskAPIProvider speaks the createTask/getTaskResult JSON API shared by
// CapMonster and Anti-Captcha.
type taskAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
}

func (p *taskAPIProvider) Name() string { return p.name }

func (p *taskAPIProvider) SolveTurnstile(ctx context.Context, site_key string, page_url string) (string, error) {
	return p.solve(ctx, "TurnstileTaskProxyless", site_key, page_url)
}

func (p *taskAPIProvider) SolveRecaptchaV2(ctx context.Context, site_key string, page_url string) (string, error) {
	return p.solve(ctx, "NoCaptchaTaskProxyless", site_key, page_url)
}

type taskCreateResponse struct {
	ErrorID   int    `json:"errorId"`
	ErrorCode string `json:"errorCode"`
	TaskID    int64  `json:"taskId"`
}

type taskResultResponse struct {
	ErrorID   int    `json:"errorId"`
	ErrorCode string `json:"errorCode"`
	Status    string `json:"status"`
	Solution  struct {
		GRecaptchaResponse string `json:"gRecaptchaResponse"`
		Token              string `json:"token"`
	} `json:"solution"`
}

func (p *taskAPIProvider) solve(ctx context.Context, task_type string, site_key string, page_url string) (string, error) {
	client := resty.New().SetBaseURL(p.baseURL).SetTimeout(30 * time.Second)

	var created taskCreateResponse
	_, err := client.R().SetContext(ctx).
		SetBody(map[string]interface{}{
			"clientKey": p.apiKey,
			"task": map[string]interface{}{
				"type":       task_type,
				"websiteURL": page_url,
				"websiteKey": site_key,
			},
		}).
		SetResult(&created).
		Post("/createTask")
	if err != nil {
		return "", err
	}
	if created.ErrorID != 0 {
		return "", fmt.Errorf("%s create error: %s", p.name, created.ErrorCode)
	}
	log.Debug("[captcha] %s task created (id: %d)", p.name, created.TaskID)

	for i := 0; i < captchaPollLimit; i++ {
		if err := sleepCtx(ctx, captchaPollInterval); err != nil {
			return "", err
		}
		var result taskResultResponse
		_, err := client.R().SetContext(ctx).
			SetBody(map[string]interface{}{"clientKey": p.apiKey, "taskId": created.TaskID}).
			SetResult(&result).
			Post("/getTaskResult")
		if err != nil {
			return "", err
		}
		if result.ErrorID != 0 {
			return "", fmt.Errorf("%s result error: %s", p.name, result.ErrorCode)
		}
		if result.Status == "ready" {
			if result.Solution.GRecaptchaResponse != "" {
				return result.Solution.GRecaptchaResponse, nil
			}
			return result.Solution.Token, nil
		}
	}
	return "", fmt.Errorf("%s: solve timed out", p.name)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

var turnstileSiteKeyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`data-sitekey="([0-9A-Za-z_-]+)"`),
	regexp.MustCompile(`cFPWv\s?:\s?['"]([^'"]+)['"]`),
	regexp.MustCompile(`["']sitekey["']\s*:\s*["']([^"']+)["']`),
}

var recaptchaSiteKeyPattern = regexp.MustCompile(`recaptcha/api2?/anchor\?[^"']*k=([0-9A-Za-z_-]+)`)

// ExtractTurnstileSiteKey pulls the Turnstile site key out of challenge markup.
func ExtractTurnstileSiteKey(html string) (string, bool) {
	for _, pattern := range turnstileSiteKeyPatterns {
		if m := pattern.FindStringSubmatch(html); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// ExtractRecaptchaSiteKey pulls the reCAPTCHA v2 site key out of page markup.
func ExtractRecaptchaSiteKey(html string) (string, bool) {
	if m := recaptchaSiteKeyPattern.FindStringSubmatch(html); m != nil {
		return m[1], true
	}
	return "", false
}
