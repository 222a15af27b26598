package usecase

import (
	"strings"
	"testing"
)

func TestDetectBotWall(t *testing.T) {
	tests := []struct {
		name       string
		html       string
		wantBlock  bool
		wantReason string
	}{
		{
			name:       "title marker",
			html:       `<html><head><title>Access Denied</title></head><body>Reference #18</body></html>`,
			wantBlock:  true,
			wantReason: "access denied",
		},
		{
			name:       "short body marker",
			html:       `<html><body><h1>Too Many Requests</h1><p>Slow down.</p></body></html>`,
			wantBlock:  true,
			wantReason: "too many requests",
		},
		{
			name:       "captcha widget",
			html:       `<html><body><div class="g-recaptcha" data-sitekey="x"></div></body></html>`,
			wantBlock:  true,
			wantReason: "captcha",
		},
		{
			name:      "product page",
			html:      `<html><head><title>Blue Kettle</title></head><body><span class="price">$12.00</span></body></html>`,
			wantBlock: false,
		},
		{
			name:      "long product page mentioning captcha",
			html:      `<html><head><title>Blue Kettle</title></head><body><p>` + strings.Repeat("great kettle ", 300) + `captcha</p></body></html>`,
			wantBlock: false,
		},
		{
			name:      "marker only in script",
			html:      `<html><head><title>Shop</title><script>var captcha = false;</script></head><body>ok</body></html>`,
			wantBlock: false,
		},
		{name: "empty", html: "", wantBlock: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocked, reason := DetectBotWall(tt.html)
			if blocked != tt.wantBlock {
				t.Fatalf("blocked = %v, want %v", blocked, tt.wantBlock)
			}
			if tt.wantBlock && reason != tt.wantReason {
				t.Fatalf("reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}
