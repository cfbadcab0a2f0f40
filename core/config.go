package core

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/titanops/titan/log"
)

type GeneralConfig struct {
	DefaultProfile string `mapstructure:"default_profile" json:"default_profile" yaml:"default_profile"`
	Impersonation  bool   `mapstructure:"impersonation" json:"impersonation" yaml:"impersonation"`
	Proxy          string `mapstructure:"proxy" json:"proxy" yaml:"proxy"`
}

type BrowserConfig struct {
	Headless       bool `mapstructure:"headless" json:"headless" yaml:"headless"`
	TimeoutSecs    int  `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
	BlockResources bool `mapstructure:"block_resources" json:"block_resources" yaml:"block_resources"`
}

type SolverConfig struct {
	Path string `mapstructure:"path" json:"path" yaml:"path"`
}

type SessionConfig struct {
	DBPath   string `mapstructure:"db_path" json:"db_path" yaml:"db_path"`
	Autosave bool   `mapstructure:"autosave" json:"autosave" yaml:"autosave"`
}

const (
	CFG_GENERAL = "general"
	CFG_BROWSER = "browser"
	CFG_CAPTCHA = "captcha"
	CFG_SOLVER  = "solver"
	CFG_SESSION = "session"
)

type Config struct {
	general       *GeneralConfig
	browserConfig *BrowserConfig
	captchaConfig *CaptchaConfig
	solverConfig  *SolverConfig
	sessionConfig *SessionConfig
	cfg           *viper.Viper
}

func NewConfig(cfg_dir string, path string) (*Config, error) {
	c := &Config{
		general:       &GeneralConfig{},
		browserConfig: &BrowserConfig{},
		captchaConfig: &CaptchaConfig{},
		solverConfig:  &SolverConfig{},
		sessionConfig: &SessionConfig{},
	}

	c.cfg = viper.New()
	c.cfg.SetConfigType("json")

	if path == "" {
		path = filepath.Join(cfg_dir, "config.json")
	}
	err := os.MkdirAll(filepath.Dir(path), os.FileMode(0700))
	if err != nil {
		return nil, err
	}
	c.cfg.SetConfigFile(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		err = c.cfg.WriteConfigAs(path)
		if err != nil {
			return nil, err
		}
	}

	err = c.cfg.ReadInConfig()
	if err != nil {
		return nil, err
	}

	c.cfg.UnmarshalKey(CFG_GENERAL, &c.general)
	if c.cfg.Get("general.default_profile") == nil {
		c.cfg.Set("general.default_profile", "modern_windows")
		c.general.DefaultProfile = "modern_windows"
	}
	if c.cfg.Get("general.impersonation") == nil {
		c.cfg.Set("general.impersonation", true)
		c.general.Impersonation = true
	}

	c.cfg.UnmarshalKey(CFG_BROWSER, &c.browserConfig)
	if c.cfg.Get("browser.headless") == nil {
		c.cfg.Set("browser.headless", true)
		c.browserConfig.Headless = true
	}
	if c.browserConfig.TimeoutSecs == 0 {
		c.browserConfig.TimeoutSecs = 30
	}
	if c.cfg.Get("browser.block_resources") == nil {
		c.cfg.Set("browser.block_resources", true)
		c.browserConfig.BlockResources = true
	}

	c.cfg.UnmarshalKey(CFG_CAPTCHA, &c.captchaConfig)
	if c.captchaConfig == nil {
		c.captchaConfig = &CaptchaConfig{}
	}

	c.cfg.UnmarshalKey(CFG_SOLVER, &c.solverConfig)
	if c.solverConfig == nil {
		c.solverConfig = &SolverConfig{}
	}

	c.cfg.UnmarshalKey(CFG_SESSION, &c.sessionConfig)
	if c.sessionConfig == nil {
		c.sessionConfig = &SessionConfig{}
	}
	if c.sessionConfig.DBPath == "" {
		c.sessionConfig.DBPath = filepath.Join(cfg_dir, "sessions.db")
		c.cfg.Set(CFG_SESSION, c.sessionConfig)
	}

	c.Save()
	return c, nil
}

func (c *Config) Save() {
	err := c.cfg.WriteConfig()
	if err != nil {
		log.Error("config save error: %v", err)
	}
}

func (c *Config) GetDefaultProfile() string  { return c.general.DefaultProfile }
func (c *Config) GetImpersonation() bool     { return c.general.Impersonation }
func (c *Config) GetProxy() string           { return c.general.Proxy }
func (c *Config) GetBrowser() *BrowserConfig { return c.browserConfig }
func (c *Config) GetCaptcha() *CaptchaConfig { return c.captchaConfig }
func (c *Config) GetSolverPath() string      { return c.solverConfig.Path }
func (c *Config) GetSession() *SessionConfig { return c.sessionConfig }

func (c *Config) SetDefaultProfile(name string) {
	c.general.DefaultProfile = name
	c.cfg.Set(CFG_GENERAL, c.general)
	c.Save()
}

func (c *Config) SetProxy(proxy string) {
	c.general.Proxy = proxy
	c.cfg.Set(CFG_GENERAL, c.general)
	c.Save()
}

func (c *Config) SetCaptcha(provider string, api_key string) {
	c.captchaConfig.Provider = provider
	c.captchaConfig.APIKey = api_key
	c.cfg.Set(CFG_CAPTCHA, c.captchaConfig)
	c.Save()
}
