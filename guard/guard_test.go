package guard

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
)

type fakeResolver map[string][]string

func (f fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	if addrs, ok := f[host]; ok {
		return addrs, nil
	}
	return nil, errors.New("no such host")
}

func TestValidateURL(t *testing.T) {
	res := fakeResolver{
		"example.com":    {"93.184.215.14"},
		"intranet.local": {"10.1.2.3"},
	}
	tests := []struct {
		url          string
		blockPrivate bool
		want         error // nil, a sentinel, or errAny
	}{
		{"https://example.com/page", true, nil},
		{"http://example.com/", true, nil},
		{"ftp://example.com/data", false, ErrUnsafeScheme},
		{"javascript:alert(1)", false, ErrUnsafeScheme},
		{"file:///etc/passwd", false, ErrUnsafeScheme},
		{"http:///nohost", false, errAny},
		{"http://127.0.0.1/admin", true, ErrPrivateAddress},
		{"http://127.0.0.1/admin", false, nil},
		{"http://10.0.0.1/internal", true, ErrPrivateAddress},
		{"http://[::1]/api", true, ErrPrivateAddress},
		{"http://172.16.0.1/secret", true, ErrPrivateAddress},
		{"http://intranet.local/", true, ErrPrivateAddress},
		{"http://unresolvable.test/", true, nil},
	}
	for _, tt := range tests {
		err := validateURL(context.Background(), res, tt.url, tt.blockPrivate)
		switch {
		case tt.want == nil && err != nil:
			t.Errorf("%s (block=%v): unexpected %v", tt.url, tt.blockPrivate, err)
		case tt.want == errAny && err == nil:
			t.Errorf("%s: expected an error", tt.url)
		case tt.want != nil && tt.want != errAny && !errors.Is(err, tt.want):
			t.Errorf("%s (block=%v): got %v, want %v", tt.url, tt.blockPrivate, err, tt.want)
		}
	}
}

var errAny = errors.New("any error")

func TestValidateIdentifier(t *testing.T) {
	for _, ok := range []string{"demo", "page_0190a3c4-7d1e-7000-8000-000000000000", "v1.2"} {
		if err := ValidateIdentifier(ok); err != nil {
			t.Errorf("%q: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "../etc/passwd", "has spaces", "a/b", strings.Repeat("a", 257)} {
		if err := ValidateIdentifier(bad); !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("%q: got %v", bad, err)
		}
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"127.0.0.1", true},
		{"10.255.0.1", true},
		{"172.31.255.255", true},
		{"172.32.0.1", false},
		{"192.168.0.10", true},
		{"169.254.169.254", true},
		{"100.64.0.1", true},
		{"0.0.0.0", true},
		{"::1", true},
		{"fd00::1", true},
		{"8.8.8.8", false},
		{"2606:4700::1111", false},
	}
	for _, tt := range tests {
		if got := IsPrivateIP(net.ParseIP(tt.ip)); got != tt.private {
			t.Errorf("IsPrivateIP(%s) = %v, want %v", tt.ip, got, tt.private)
		}
	}
}
