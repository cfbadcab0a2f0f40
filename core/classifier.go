package core

import "strings"

// Protection identifies which anti-bot system produced a response.
type Protection string

const (
	ProtectionNone                Protection = "none"
	ProtectionCloudflareChallenge Protection = "cloudflare_challenge"
	ProtectionCloudflareGeneric   Protection = "cloudflare_generic"
	ProtectionAkamai              Protection = "akamai"
	ProtectionIncapsula           Protection = "incapsula"
	ProtectionDatadome            Protection = "datadome"
	ProtectionAWSWAF              Protection = "aws_waf"
	ProtectionGeneric403          Protection = "generic_403"
	ProtectionUnknown             Protection = "unknown"
)

// DetectProtection classifies a response by vendor marker, first match wins.
// A nil response means the transport itself failed and nothing can be said
// about the target, which maps to unknown. Missing headers, cookies or an
// empty body are treated as absent markers, never as an error.
func DetectProtection(resp *Response) Protection {
	if resp == nil {
		return ProtectionUnknown
	}

	body := strings.ToLower(resp.Body)
	server := strings.ToLower(resp.Header("Server"))

	if strings.Contains(server, "cloudflare") {
		if strings.Contains(body, "just a moment") || strings.Contains(body, "turnstile") {
			return ProtectionCloudflareChallenge
		}
		return ProtectionCloudflareGeneric
	}

	if strings.Contains(body, "akamai") || strings.Contains(server, "akamai") ||
		strings.Contains(strings.ToLower(resp.Header("X-Akamai-Transformed")), "akamai") {
		return ProtectionAkamai
	}

	if resp.Cookie("visid_incap") != "" || strings.Contains(body, "incapsula") || strings.Contains(body, "_incap_") {
		return ProtectionIncapsula
	}

	if resp.Cookie("datadome") != "" || strings.Contains(body, "datadome") {
		return ProtectionDatadome
	}

	if resp.Cookie("awselb") != "" || resp.Header("X-Amz-Request-Id") != "" || resp.Header("X-Amzn-Requestid") != "" {
		if resp.Status == 403 {
			return ProtectionAWSWAF
		}
	}

	if resp.Status == 403 {
		return ProtectionGeneric403
	}

	return ProtectionNone
}
