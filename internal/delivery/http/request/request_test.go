package request

import (
	"net/http/httptest"
	"testing"
)

func TestParseHistoryQuery(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		wantLimit int
		wantErr   bool
	}{
		{name: "default limit", target: "/h?url=https://shop.test/a", wantLimit: DefaultHistoryLimit},
		{name: "explicit limit", target: "/h?url=https://shop.test/a&limit=5", wantLimit: 5},
		{name: "limit capped", target: "/h?url=https://shop.test/a&limit=100000", wantLimit: MaxHistoryLimit},
		{name: "missing url", target: "/h", wantErr: true},
		{name: "bad url", target: "/h?url=ftp://shop.test/a", wantErr: true},
		{name: "bad limit", target: "/h?url=https://shop.test/a&limit=-1", wantErr: true},
		{name: "non numeric limit", target: "/h?url=https://shop.test/a&limit=ten", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ParseHistoryQuery(httptest.NewRequest("GET", tt.target, nil))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && q.Limit != tt.wantLimit {
				t.Fatalf("limit = %d, want %d", q.Limit, tt.wantLimit)
			}
		})
	}
}
