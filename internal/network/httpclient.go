// File: internal/network/httpclient.go
package network

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/xkilldash9x/banner-cli/internal/config"
	"github.com/xkilldash9x/banner-cli/internal/observability"
)

// Constants for default TCP/HTTP settings.
const (
	DefaultDialTimeout           = 10 * time.Second
	DefaultKeepAliveInterval     = 30 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 30 * time.Second
	DefaultRequestTimeout        = 30 * time.Second

	// A registration run talks to exactly one host, sequentially.
	DefaultMaxIdleConns        = 4
	DefaultMaxIdleConnsPerHost = 2
	DefaultIdleConnTimeout     = 90 * time.Second

	// maxRedirects mirrors the standard library's default redirect budget.
	maxRedirects = 10
)

// SecureMinTLSVersion defines the lowest TLS version considered secure by default.
const SecureMinTLSVersion = tls.VersionTLS12

var defaultCipherSuites = []uint16{
	tls.TLS_AES_128_GCM_SHA256,
	tls.TLS_AES_256_GCM_SHA384,
	tls.TLS_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
}

// ClientConfig holds the configuration for the HTTP client and transport layers.
type ClientConfig struct {
	// Security settings
	IgnoreTLSErrors bool
	TLSConfig       *tls.Config

	// Timeout settings
	RequestTimeout        time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration

	DialerConfig *DialerConfig

	// Connection pool settings
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	ForceHTTP2 bool

	ProxyURL *url.URL

	// CookieJar carries the portal session between requests. A fresh
	// in-memory jar is created when nil.
	CookieJar http.CookieJar

	// UserAgent and Headers are added to every request that does not already set them.
	UserAgent string
	Headers   map[string]string

	// Throttle, when set, gates every outgoing request.
	Throttle Throttle

	Logger *zap.Logger
}

// NewDefaultClientConfig creates the default client configuration.
func NewDefaultClientConfig() *ClientConfig {
	jar, _ := cookiejar.New(nil) // only errors on invalid options

	return &ClientConfig{
		DialerConfig:          NewDialerConfig(),
		RequestTimeout:        DefaultRequestTimeout,
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
		MaxIdleConns:          DefaultMaxIdleConns,
		MaxIdleConnsPerHost:   DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		CookieJar:             jar,
		Logger:                observability.GetLogger().Named("httpclient"),
	}
}

// NewClientConfigFromConfig builds a ClientConfig from the application's
// network and throttle sections.
func NewClientConfigFromConfig(netCfg config.NetworkConfig, throttleCfg config.ThrottleConfig) (*ClientConfig, error) {
	cc := NewDefaultClientConfig()
	cc.RequestTimeout = netCfg.Timeout
	cc.IgnoreTLSErrors = netCfg.IgnoreTLSErrors
	cc.ForceHTTP2 = netCfg.ForceHTTP2
	cc.UserAgent = netCfg.UserAgent
	cc.Headers = netCfg.Headers
	cc.Throttle = NewMinIntervalThrottle(throttleCfg.MinInterval, throttleCfg.Burst)

	if netCfg.Proxy.Enabled {
		proxyURL, err := url.Parse(netCfg.Proxy.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy address %q: %w", netCfg.Proxy.Address, err)
		}
		cc.ProxyURL = proxyURL
	}
	return cc, nil
}

// NewHTTPTransport creates and configures an http.Transport based on the provided configuration.
func NewHTTPTransport(config *ClientConfig) *http.Transport {
	if config == nil {
		config = NewDefaultClientConfig()
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.DialerConfig == nil {
		config.DialerConfig = NewDialerConfig()
	}

	tlsConfig := configureTLS(config)
	dialerConfig := config.DialerConfig.Clone()
	if dialerConfig.Logger == nil {
		dialerConfig.Logger = config.Logger
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return DialTCPContext(ctx, network, addr, dialerConfig)
		},
		TLSClientConfig:       tlsConfig,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		// CompressionMiddleware handles gzip, deflate and brotli.
		DisableCompression: true,
		ForceAttemptHTTP2:  config.ForceHTTP2,
	}

	if config.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(config.ProxyURL)
	}

	if config.ForceHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			config.Logger.Warn("Failed to configure HTTP/2 transport, falling back to HTTP/1.1", zap.Error(err))
		}
	} else if len(tlsConfig.NextProtos) == 0 {
		tlsConfig.NextProtos = []string{"http/1.1"}
	}

	return transport
}

// NewClient creates the http.Client used against the portal. Requests flow
// through throttle, then default headers, then decompression, then the transport.
// Redirects are followed so login and term selection land on their final pages.
func NewClient(config *ClientConfig) *http.Client {
	if config == nil {
		config = NewDefaultClientConfig()
	}
	if config.CookieJar == nil {
		config.CookieJar, _ = cookiejar.New(nil)
	}

	var rt http.RoundTripper = NewCompressionMiddleware(NewHTTPTransport(config))
	rt = &headerMiddleware{transport: rt, userAgent: config.UserAgent, headers: config.Headers}
	if config.Throttle != nil {
		rt = NewThrottleMiddleware(rt, config.Throttle)
	}

	logger := config.Logger
	return &http.Client{
		Transport: rt,
		Timeout:   config.RequestTimeout,
		Jar:       config.CookieJar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			logger.Debug("Following redirect.", zap.String("to", req.URL.Redacted()))
			return nil
		},
	}
}

// headerMiddleware stamps the configured User-Agent and static headers onto requests.
type headerMiddleware struct {
	transport http.RoundTripper
	userAgent string
	headers   map[string]string
}

func (h *headerMiddleware) RoundTrip(req *http.Request) (*http.Response, error) {
	if h.userAgent == "" && len(h.headers) == 0 {
		return h.transport.RoundTrip(req)
	}
	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())
	if h.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", h.userAgent)
	}
	for k, v := range h.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return h.transport.RoundTrip(req)
}

// configureTLS sets up the TLS configuration, merging secure defaults into
// whatever the caller supplied.
func configureTLS(config *ClientConfig) *tls.Config {
	var tlsConfig *tls.Config
	if config.TLSConfig != nil {
		tlsConfig = config.TLSConfig.Clone()
	} else {
		tlsConfig = &tls.Config{}
	}

	if len(tlsConfig.CipherSuites) == 0 {
		tlsConfig.CipherSuites = defaultCipherSuites
	}
	if tlsConfig.ClientSessionCache == nil {
		tlsConfig.ClientSessionCache = tls.NewLRUClientSessionCache(64)
	}
	if tlsConfig.MinVersion == 0 {
		tlsConfig.MinVersion = SecureMinTLSVersion
	}
	if tlsConfig.MinVersion < SecureMinTLSVersion && config.Logger != nil {
		config.Logger.Warn("Insecure TLS configuration detected: minimum TLS version is below TLS 1.2.",
			zap.Uint16("configured_version", tlsConfig.MinVersion))
	}

	// Campus portals behind self-signed certificates need this escape hatch.
	tlsConfig.InsecureSkipVerify = config.IgnoreTLSErrors
	return tlsConfig
}
