package core

import (
	"net/http"
	"testing"
)

func TestDetectProtection(t *testing.T) {
	tests := []struct {
		name string
		resp *Response
		want Protection
	}{
		{
			name: "nil response",
			resp: nil,
			want: ProtectionUnknown,
		},
		{
			name: "clean 200",
			resp: &Response{Status: 200, Body: "<html>welcome</html>"},
			want: ProtectionNone,
		},
		{
			name: "cloudflare challenge page",
			resp: &Response{
				Status:  403,
				Headers: http.Header{"Server": []string{"cloudflare"}},
				Body:    "<title>Just a moment...</title>",
			},
			want: ProtectionCloudflareChallenge,
		},
		{
			name: "cloudflare turnstile page",
			resp: &Response{
				Status:  403,
				Headers: http.Header{"Server": []string{"cloudflare"}},
				Body:    "<div class=\"cf-turnstile\"></div>",
			},
			want: ProtectionCloudflareChallenge,
		},
		{
			name: "cloudflare without challenge markers",
			resp: &Response{
				Status:  503,
				Headers: http.Header{"Server": []string{"cloudflare"}},
				Body:    "error 1020",
			},
			want: ProtectionCloudflareGeneric,
		},
		{
			name: "cloudflare wins over body 403",
			resp: &Response{
				Status:  403,
				Headers: http.Header{"Server": []string{"cloudflare"}},
				Body:    "access denied",
			},
			want: ProtectionCloudflareGeneric,
		},
		{
			name: "akamai server header",
			resp: &Response{
				Status:  200,
				Headers: http.Header{"Server": []string{"AkamaiGHost"}},
			},
			want: ProtectionAkamai,
		},
		{
			name: "akamai transform header",
			resp: &Response{
				Status:  200,
				Headers: http.Header{"X-Akamai-Transformed": []string{"9 - 0 pmb=akamai"}},
			},
			want: ProtectionAkamai,
		},
		{
			name: "incapsula cookie",
			resp: &Response{
				Status:  200,
				Cookies: map[string]string{"visid_incap": "abc123"},
			},
			want: ProtectionIncapsula,
		},
		{
			name: "incapsula body marker",
			resp: &Response{Status: 200, Body: "request blocked by _Incap_ rules"},
			want: ProtectionIncapsula,
		},
		{
			name: "datadome cookie",
			resp: &Response{
				Status:  403,
				Cookies: map[string]string{"datadome": "xyz"},
			},
			want: ProtectionDatadome,
		},
		{
			name: "aws waf cookie with 403",
			resp: &Response{
				Status:  403,
				Cookies: map[string]string{"awselb": "v"},
			},
			want: ProtectionAWSWAF,
		},
		{
			name: "aws request id header with 403",
			resp: &Response{
				Status:  403,
				Headers: http.Header{"X-Amzn-Requestid": []string{"id-1"}},
			},
			want: ProtectionAWSWAF,
		},
		{
			name: "aws markers without 403 fall through",
			resp: &Response{
				Status:  200,
				Headers: http.Header{"X-Amz-Request-Id": []string{"id-2"}},
				Body:    "ok",
			},
			want: ProtectionNone,
		},
		{
			name: "bare 403",
			resp: &Response{Status: 403, Body: "forbidden"},
			want: ProtectionGeneric403,
		},
		{
			name: "markers are case insensitive",
			resp: &Response{
				Status:  403,
				Headers: http.Header{"Server": []string{"CloudFlare"}},
				Body:    "JUST A MOMENT",
			},
			want: ProtectionCloudflareChallenge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectProtection(tt.resp); got != tt.want {
				t.Errorf("DetectProtection() = %s, want %s", got, tt.want)
			}
		})
	}
}
