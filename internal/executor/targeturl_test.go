package executor

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validatorResolving(ips []net.IP, err error) *TargetURLValidator {
	v := NewTargetURLValidator()
	v.lookupIP = func(ctx context.Context, host string) ([]net.IP, error) {
		return ips, err
	}
	return v
}

func TestTargetURLValidatorAcceptsPublicHTTPS(t *testing.T) {
	v := validatorResolving([]net.IP{net.ParseIP("93.184.216.34")}, nil)

	ok, reason := v.Validate(context.Background(), "https://example.com/hook")
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestTargetURLValidatorRejections(t *testing.T) {
	public := []net.IP{net.ParseIP("93.184.216.34")}

	tests := []struct {
		name   string
		rawURL string
		ips    []net.IP
		err    error
	}{
		{name: "empty", rawURL: ""},
		{name: "whitespace only", rawURL: "   "},
		{name: "relative URL", rawURL: "/hook"},
		{name: "no scheme", rawURL: "example.com/hook", ips: public},
		{name: "http scheme", rawURL: "http://example.com/hook", ips: public},
		{name: "ftp scheme", rawURL: "ftp://example.com/file", ips: public},
		{name: "localhost", rawURL: "https://localhost/hook"},
		{name: "localhost with port", rawURL: "https://localhost:8443/hook"},
		{name: "internal suffix", rawURL: "https://db.prod.internal/hook"},
		{name: "loopback literal", rawURL: "https://127.0.0.1/hook"},
		{name: "metadata service", rawURL: "https://169.254.169.254/latest/meta-data/"},
		{name: "private 10/8", rawURL: "https://10.1.2.3/hook"},
		{name: "private 172.16/12", rawURL: "https://172.16.0.9/hook"},
		{name: "private 192.168/16", rawURL: "https://192.168.1.1/hook"},
		{name: "ipv6 loopback", rawURL: "https://[::1]/hook"},
		{name: "ipv6 link local", rawURL: "https://[fe80::1]/hook"},
		{name: "resolves to loopback", rawURL: "https://sneaky.example.com/hook", ips: []net.IP{net.ParseIP("127.0.0.1")}},
		{name: "resolves to private", rawURL: "https://sneaky.example.com/hook", ips: []net.IP{net.ParseIP("10.0.0.5")}},
		{name: "one blocked address among many", rawURL: "https://multi.example.com/hook", ips: []net.IP{net.ParseIP("93.184.216.34"), net.ParseIP("192.168.0.2")}},
		{name: "dns error fails closed", rawURL: "https://nxdomain.example.com/hook", err: errors.New("no such host")},
		{name: "empty resolution fails closed", rawURL: "https://empty.example.com/hook", ips: []net.IP{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := validatorResolving(tc.ips, tc.err)
			ok, reason := v.Validate(context.Background(), tc.rawURL)
			assert.False(t, ok)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestTargetURLValidatorLiteralSkipsDNS(t *testing.T) {
	v := NewTargetURLValidator()
	v.lookupIP = func(ctx context.Context, host string) ([]net.IP, error) {
		t.Fatalf("unexpected DNS lookup for %s", host)
		return nil, nil
	}

	ok, _ := v.Validate(context.Background(), "https://93.184.216.34/hook")
	assert.True(t, ok)
}
