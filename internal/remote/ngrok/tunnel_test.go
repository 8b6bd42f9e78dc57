package ngrok

import (
	"context"
	"testing"
)

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"ok", Options{LocalAddr: LocalAddr(8087)}, false},
		{"with auth", Options{LocalAddr: LocalAddr(8087), BasicAuthUser: "me", BasicAuthPass: "longenough"}, false},
		{"missing addr", Options{}, true},
		{"relative addr", Options{LocalAddr: "localhost"}, true},
		{"user only", Options{LocalAddr: LocalAddr(1), BasicAuthUser: "me"}, true},
		{"pass only", Options{LocalAddr: LocalAddr(1), BasicAuthPass: "longenough"}, true},
		{"short pass", Options{LocalAddr: LocalAddr(1), BasicAuthUser: "me", BasicAuthPass: "short"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLocalAddr(t *testing.T) {
	if got := LocalAddr(8087); got != "http://127.0.0.1:8087" {
		t.Fatalf("unexpected address %q", got)
	}
}

func TestStartRejectsInvalidOptions(t *testing.T) {
	if _, err := Start(context.Background(), Options{}); err == nil {
		t.Fatalf("expected an error without a local address")
	}
}

func TestNilTunnel(t *testing.T) {
	var tunnel *Tunnel
	if tunnel.URL() != "" {
		t.Fatalf("expected empty URL")
	}
	if err := tunnel.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
