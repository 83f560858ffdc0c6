package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the SOCKS5 greeting done by CheckProxy.
const checkProxyTimeout = 2 * time.Second

// SOCKS5 greeting constants.
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthPassword = 0x02
	socks5AuthNoAccept = 0xFF
)

// ProxyConfig is a parsed proxy address.
type ProxyConfig struct {
	// Address is "host:port".
	Address string
	// Auth is nil when the proxy needs no credentials.
	Auth *proxy.Auth
}

// ParseProxy accepts "host:port" or "socks5://[user:pass@]host:port".
func ParseProxy(raw string) (ProxyConfig, error) {
	raw = strings.TrimSpace(raw)
	var cfg ProxyConfig

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "socks5" && u.Scheme != "socks5h") {
			return ProxyConfig{}, ErrInvalidProxyAddress
		}
		raw = u.Host
		if u.User != nil {
			pass, _ := u.User.Password()
			cfg.Auth = &proxy.Auth{User: u.User.Username(), Password: pass}
		}
	}

	if !isValidProxyAddress(raw) {
		return ProxyConfig{}, ErrInvalidProxyAddress
	}
	cfg.Address = raw
	return cfg, nil
}

// isValidProxyAddress reports whether address is "host:port" with a port
// between 1 and 65535. IPv6 hosts must be bracketed.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// NewSOCKS5Transport returns a transport that dials every connection
// through the proxy at raw.
func NewSOCKS5Transport(raw string) (*http.Transport, error) {
	cfg, err := ParseProxy(raw)
	if err != nil {
		return nil, err
	}

	dialer, err := proxy.SOCKS5("tcp", cfg.Address, cfg.Auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	t := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		t.DialContext = cd.DialContext
	} else {
		t.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}
	return t, nil
}

// CheckProxy performs a SOCKS5 greeting with the proxy at raw. It does not
// open a connection to any target.
func CheckProxy(ctx context.Context, raw string) ProxyStatus {
	cfg, err := ParseProxy(raw)
	if err != nil {
		return ProxyStatusCannotConnect
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	method := byte(socks5AuthNone)
	if cfg.Auth != nil {
		method = socks5AuthPassword
	}
	if _, err := conn.Write([]byte{socks5Version, 0x01, method}); err != nil {
		return ProxyStatusCannotConnect
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if resp[0] != socks5Version || resp[1] == socks5AuthNoAccept || resp[1] != method {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}
