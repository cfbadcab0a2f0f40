package core

import (
	"sort"
	"strconv"
	"strings"
)

// browserHeaderOrder is the order Chrome emits request headers in. Header
// order is part of the HTTP-layer fingerprint, so the transport sends
// whatever subset it has in this sequence and appends the rest.
var browserHeaderOrder = []string{
	"Host",
	"Connection",
	"sec-ch-ua",
	"sec-ch-ua-mobile",
	"sec-ch-ua-platform",
	"Upgrade-Insecure-Requests",
	"User-Agent",
	"Accept",
	"Sec-Fetch-Site",
	"Sec-Fetch-Mode",
	"Sec-Fetch-User",
	"Sec-Fetch-Dest",
	"Referer",
	"Accept-Encoding",
	"Accept-Language",
}

// StealthManager shapes the HTTP header surface of every outgoing request so
// it matches what the active identity's browser would send.
type StealthManager struct{}

func NewStealthManager() *StealthManager {
	return &StealthManager{}
}

// Transform fills in the headers a real browser always sends and pins the
// User-Agent to the active identity. Caller headers win over defaults,
// except User-Agent which must match the identity bundle.
func (s *StealthManager) Transform(headers map[string]string, identity IdentityProfile) map[string]string {
	out := make(map[string]string, len(headers)+5)
	for name, value := range headers {
		out[name] = value
	}
	if _, ok := out["Accept"]; !ok {
		out["Accept"] = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	}
	if _, ok := out["Accept-Language"]; !ok {
		out["Accept-Language"] = "en-US,en;q=0.9"
	}
	if _, ok := out["Accept-Encoding"]; !ok {
		out["Accept-Encoding"] = "gzip, deflate, br"
	}
	if _, ok := out["Connection"]; !ok {
		out["Connection"] = "keep-alive"
	}
	out["User-Agent"] = identity.UserAgent
	return out
}

// headerOrder returns the header names of m in browser emission order, with
// headers outside the known order appended lexically for determinism.
func headerOrder(m map[string]string) []string {
	ordered := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, want := range browserHeaderOrder {
		for name := range m {
			if strings.EqualFold(name, want) && !seen[name] {
				ordered = append(ordered, name)
				seen[name] = true
			}
		}
	}
	rest := make([]string, 0, len(m))
	for name := range m {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(ordered, rest...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BrowserArgs returns extra chromium launch arguments for the given identity.
func (s *StealthManager) BrowserArgs(identity IdentityProfile) map[string]string {
	return map[string]string{
		"disable-blink-features": "AutomationControlled",
		"disable-infobars":       "",
		"disable-dev-shm-usage":  "",
		"window-size":            strconv.Itoa(identity.ViewportWidth) + "," + strconv.Itoa(identity.ViewportHeight),
	}
}

// StealthScripts returns the fingerprint-noise scripts injected at page load:
// webdriver hiding, canvas noise, WebGL vendor pinning and audio noise. The
// WebGL values come from the active identity so the rendering layer agrees
// with the rest of the bundle.
func (s *StealthManager) StealthScripts(identity IdentityProfile) []string {
	return []string{
		scriptHideWebdriver,
		scriptCanvasNoise,
		`(() => {
	const getParameter = WebGLRenderingContext.prototype.getParameter;
	WebGLRenderingContext.prototype.getParameter = function(parameter) {
		if (parameter === 37445) return '` + identity.GPUVendor + `';
		if (parameter === 37446) return '` + identity.GPURenderer + `';
		return getParameter.apply(this, arguments);
	};
})();`,
		scriptAudioNoise,
	}
}

const scriptHideWebdriver = `
(() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
})();`

const scriptCanvasNoise = `
(() => {
	const toDataURL = HTMLCanvasElement.prototype.toDataURL;
	const getImageData = CanvasRenderingContext2D.prototype.getImageData;
	HTMLCanvasElement.prototype.toDataURL = function(type) {
		const ctx = this.getContext('2d');
		if (ctx) {
			const shift = Math.floor(Math.random() * 2) - 1;
			ctx.fillStyle = 'rgba(0,0,0,0.0' + Math.abs(shift) + ')';
			ctx.fillRect(0, 0, 1, 1);
		}
		return toDataURL.apply(this, arguments);
	};
	CanvasRenderingContext2D.prototype.getImageData = function(x, y, w, h) {
		const image = getImageData.apply(this, arguments);
		for (let i = 0; i < image.data.length; i += 4) {
			if (Math.random() < 0.01) {
				image.data[i] = image.data[i] + (Math.floor(Math.random() * 4) - 2);
			}
		}
		return image;
	};
})();`

const scriptAudioNoise = `
(() => {
	const getChannelData = AudioBuffer.prototype.getChannelData;
	AudioBuffer.prototype.getChannelData = function(channel) {
		const data = getChannelData.apply(this, arguments);
		for (let i = 0; i < data.length; i += 100) {
			data[i] = data[i] + (Math.random() * 0.0000001);
		}
		return data;
	};
})();`
