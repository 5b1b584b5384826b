package util

import (
	"net/http"
	"testing"
)

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://plain:3128", "http://secure:3129", "internal.example, .corp")

	tests := []struct {
		target string
		want   string
	}{
		{"http://g2.com/reviews", "http://plain:3128"},
		{"https://g2.com/reviews", "http://secure:3129"},
		{"https://internal.example/x", ""},
		{"https://api.corp/x", ""},
	}
	for _, tt := range tests {
		req, err := http.NewRequest(http.MethodHead, tt.target, nil)
		if err != nil {
			t.Fatal(err)
		}
		got, err := proxy(req)
		if err != nil {
			t.Fatalf("%s: %v", tt.target, err)
		}
		gotStr := ""
		if got != nil {
			gotStr = got.String()
		}
		if gotStr != tt.want {
			t.Errorf("%s: expected proxy %q, got %q", tt.target, tt.want, gotStr)
		}
	}
}

func TestNewProxyFunc_HTTPOnlyCoversHTTPS(t *testing.T) {
	proxy := NewProxyFunc("http://plain:3128", "", "")
	req, _ := http.NewRequest(http.MethodGet, "https://reddit.com/r/x", nil)
	got, err := proxy(req)
	if err != nil || got == nil || got.Host != "plain:3128" {
		t.Errorf("expected https request routed through http proxy, got %v %v", got, err)
	}
}
