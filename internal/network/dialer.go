package network

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

// happyEyeballsDelay is the RFC 8305 fallback delay between address families.
const happyEyeballsDelay = 300 * time.Millisecond

// DialerConfig holds configuration for the low-level TCP dialer.
type DialerConfig struct {
	Timeout   time.Duration
	KeepAlive time.Duration
	// NoDelay controls TCP_NODELAY. Form posts are small and latency bound.
	NoDelay  bool
	Resolver *net.Resolver
	// Logger receives connect latencies at debug level. Silent when nil.
	Logger *zap.Logger
}

// Clone returns a copy of the DialerConfig.
func (c *DialerConfig) Clone() *DialerConfig {
	if c == nil {
		return NewDialerConfig()
	}
	clone := *c
	return &clone
}

// NewDialerConfig creates the default dialer configuration.
func NewDialerConfig() *DialerConfig {
	return &DialerConfig{
		Timeout:   DefaultDialTimeout,
		KeepAlive: DefaultKeepAliveInterval,
		NoDelay:   true,
		Resolver:  net.DefaultResolver,
	}
}

func (c *DialerConfig) netDialer() *net.Dialer {
	return &net.Dialer{
		Timeout:       c.Timeout,
		KeepAlive:     c.KeepAlive,
		FallbackDelay: happyEyeballsDelay,
		Resolver:      c.Resolver,
	}
}

// DialTCPContext opens a TCP connection for http.Transport.DialContext.
// Proxies are handled by the transport, so this always dials directly.
func DialTCPContext(ctx context.Context, network, address string, config *DialerConfig) (net.Conn, error) {
	if config == nil {
		config = NewDialerConfig()
	}

	start := time.Now()
	conn, err := config.netDialer().DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("tcp dial failed: %w", err)
	}
	if config.Logger != nil {
		config.Logger.Debug("Connected to portal host.",
			zap.String("address", address), zap.Duration("connect_time", time.Since(start)))
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tuneTCP(tcpConn, config); err != nil {
			_ = tcpConn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func tuneTCP(conn *net.TCPConn, config *DialerConfig) error {
	// Keep-alive tuning is best effort and unsupported on some platforms.
	if err := conn.SetKeepAlive(true); err == nil && config.KeepAlive > 0 {
		_ = conn.SetKeepAlivePeriod(config.KeepAlive)
	}
	if err := conn.SetNoDelay(config.NoDelay); err != nil {
		return fmt.Errorf("failed to set TCP NoDelay: %w", err)
	}
	return nil
}
