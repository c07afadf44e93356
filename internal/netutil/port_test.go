package netutil

import (
	"net"
	"strconv"
	"strings"
	"testing"
)

// freeAddr returns an address that was free a moment ago.
func freeAddr(t *testing.T) string {
	t.Helper()
	port, err := FreePort("127.0.0.1")
	if err != nil {
		t.Fatalf("FreePort() error = %v", err)
	}
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}

// busyAddr holds a listener open for the rest of the test.
func busyAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	return ln.Addr().String()
}

func TestSelectBindAddr(t *testing.T) {
	busy := busyAddr(t)
	free := freeAddr(t)

	tests := []struct {
		name       string
		preferred  string
		candidates []string
		fallback   bool
		want       string
		wantBusy   int
		wantErr    string
	}{
		{name: "preferred free", preferred: free, want: free},
		{name: "falls back", preferred: busy, candidates: []string{busy, free}, fallback: true, want: free, wantBusy: 1},
		{name: "no preferred", candidates: []string{free}, want: free},
		{name: "fallback disabled", preferred: busy, candidates: []string{free}, wantErr: "fallback is disabled"},
		{name: "all busy", preferred: busy, fallback: true, wantErr: "in use: " + busy},
		{name: "nothing configured", fallback: true, wantErr: "no bind address configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectBindAddr(tt.preferred, tt.candidates, tt.fallback)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("SelectBindAddr() error = %v; want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectBindAddr() error = %v", err)
			}
			if got.Addr != tt.want || len(got.Busy) != tt.wantBusy || got.Fallback() != (tt.wantBusy > 0) {
				t.Fatalf("SelectBindAddr() = %+v; want %s with %d busy", got, tt.want, tt.wantBusy)
			}
		})
	}
}

func TestIsAddrAvailable(t *testing.T) {
	if ok, err := IsAddrAvailable(busyAddr(t)); ok || err != nil {
		t.Fatalf("busy address = %v, %v; want false, nil", ok, err)
	}
	if ok, err := IsAddrAvailable(freeAddr(t)); !ok || err != nil {
		t.Fatalf("free address = %v, %v; want true, nil", ok, err)
	}
	if _, err := IsAddrAvailable("not an address"); err == nil {
		t.Fatal("malformed address accepted")
	}
}
