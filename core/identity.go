package core

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/titanops/titan/log"
)

// IdentityProfile is an atomic bundle of browser-identity attributes. Every
// layer of a request (TLS handshake, HTTP headers, rendering fingerprint)
// must be derived from the same active bundle - a Mac user agent next to a
// Windows platform string is an instant flag for cross-layer checks.
type IdentityProfile struct {
	Name                string `json:"name"`
	UserAgent           string `json:"user_agent"`
	TLSIdentity         string `json:"tls_identity"`
	Platform            string `json:"platform"`
	GPUVendor           string `json:"gpu_vendor"`
	GPURenderer         string `json:"gpu_renderer"`
	HardwareConcurrency int    `json:"hardware_concurrency"`
	ViewportWidth       int    `json:"viewport_width"`
	ViewportHeight      int    `json:"viewport_height"`
	DeviceMemory        int    `json:"device_memory"`
}

// TLS identity names understood by the transport layer.
const (
	TLSChrome  = "chrome"
	TLSSafari  = "safari"
	TLSFirefox = "firefox"
	TLSIos     = "ios"
)

var identityCatalog = map[string]IdentityProfile{
	"modern_windows": {
		Name:                "modern_windows",
		UserAgent:           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		TLSIdentity:         TLSChrome,
		Platform:            "Win32",
		GPUVendor:           "Google Inc. (NVIDIA)",
		GPURenderer:         "ANGLE (NVIDIA, NVIDIA GeForce RTX 3060 Direct3D11 vs_5_0 ps_5_0, D3D11)",
		HardwareConcurrency: 16,
		ViewportWidth:       1920,
		ViewportHeight:      1080,
		DeviceMemory:        8,
	},
	"modern_mac": {
		Name:                "modern_mac",
		UserAgent:           "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.3 Safari/605.1.15",
		TLSIdentity:         TLSSafari,
		Platform:            "MacIntel",
		GPUVendor:           "Apple Inc.",
		GPURenderer:         "Apple GPU",
		HardwareConcurrency: 8,
		ViewportWidth:       1440,
		ViewportHeight:      900,
		DeviceMemory:        8,
	},
	"modern_linux_firefox": {
		Name:                "modern_linux_firefox",
		UserAgent:           "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/119.0",
		TLSIdentity:         TLSFirefox,
		Platform:            "Linux x86_64",
		GPUVendor:           "Mesa",
		GPURenderer:         "Mesa Intel(R) UHD Graphics 630 (CFL GT2)",
		HardwareConcurrency: 12,
		ViewportWidth:       1920,
		ViewportHeight:      1080,
		DeviceMemory:        8,
	},
	"mobile_ios": {
		Name:                "mobile_ios",
		UserAgent:           "Mozilla/5.0 (iPhone; CPU iPhone OS 15_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.5 Mobile/15E148 Safari/604.1",
		TLSIdentity:         TLSIos,
		Platform:            "iPhone",
		GPUVendor:           "Apple Inc.",
		GPURenderer:         "Apple GPU",
		HardwareConcurrency: 6,
		ViewportWidth:       390,
		ViewportHeight:      844,
		DeviceMemory:        4,
	},
}

// tlsRotationOrder is the fixed escalation order of alternate TLS identities
// tried after a 403, assuming the probe already went out as modern_windows.
var tlsRotationOrder = []string{"modern_mac", "modern_linux_firefox", "mobile_ios"}

// IdentityManager owns the identity catalog and guards atomic activation.
type IdentityManager struct {
	active IdentityProfile
	mu     sync.RWMutex
}

func NewIdentityManager(profile_name string) (*IdentityManager, error) {
	m := &IdentityManager{}
	if err := m.Activate(profile_name); err != nil {
		return nil, err
	}
	return m, nil
}

// Activate swaps the active identity to the named catalog profile. The swap
// is all-or-nothing: readers either see the previous bundle or the new one.
func (m *IdentityManager) Activate(name string) error {
	p, ok := identityCatalog[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	m.mu.Lock()
	m.active = p
	m.mu.Unlock()
	log.Debug("[identity] activated profile: %s (tls: %s)", p.Name, p.TLSIdentity)
	return nil
}

// ActivateRandom picks a random catalog profile and activates it.
func (m *IdentityManager) ActivateRandom() IdentityProfile {
	names := ProfileNames()
	m.Activate(names[rand.Intn(len(names))])
	return m.Active()
}

// Active returns a copy of the active identity bundle.
func (m *IdentityManager) Active() IdentityProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Lookup returns a catalog profile by name without activating it.
func Lookup(name string) (IdentityProfile, bool) {
	p, ok := identityCatalog[name]
	return p, ok
}

// ProfileNames returns the catalog names in lexical order.
func ProfileNames() []string {
	names := make([]string, 0, len(identityCatalog))
	for name := range identityCatalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InjectionScript returns JS that forces the rendering layer to report the
// active bundle's hardware properties. Runs at page load, before any site
// script can probe the real values.
func (m *IdentityManager) InjectionScript() string {
	p := m.Active()
	return fmt.Sprintf(`
(() => {
	Object.defineProperty(navigator, 'platform', { get: () => '%s' });
	Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => %d });
	Object.defineProperty(navigator, 'deviceMemory', { get: () => %d });
	const getParameter = WebGLRenderingContext.prototype.getParameter;
	WebGLRenderingContext.prototype.getParameter = function(parameter) {
		if (parameter === 37445) return '%s';
		if (parameter === 37446) return '%s';
		return getParameter.apply(this, arguments);
	};
})();`, p.Platform, p.HardwareConcurrency, p.DeviceMemory, p.GPUVendor, p.GPURenderer)
}
