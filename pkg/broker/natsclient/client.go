// Package natsclient implements broker.Transport on top of a NATS connection.
package natsclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/veesix-networks/aasbus/pkg/broker"
	"github.com/veesix-networks/aasbus/pkg/logger"
)

type ConnectionStatus int32

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusClosed
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type Config struct {
	URL           string
	Name          string
	Username      string
	Password      string
	Token         string
	ReconnectWait time.Duration
	MaxReconnects int
	Timeout       time.Duration

	// TLS material; any of them turns on TLS.
	CAFile   string
	CertFile string
	KeyFile  string
}

func (c Config) secure() bool {
	return c.CAFile != "" || c.CertFile != "" || c.KeyFile != ""
}

type Client struct {
	cfg    Config
	logger *slog.Logger
	status atomic.Int32

	reconnects atomic.Uint64

	mu   sync.RWMutex
	conn *nats.Conn
}

func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		cfg:    cfg,
		logger: logger.Get(logger.Broker),
	}
}

func (c *Client) Status() ConnectionStatus {
	return ConnectionStatus(c.status.Load())
}

func (c *Client) setStatus(s ConnectionStatus) {
	old := ConnectionStatus(c.status.Swap(int32(s)))
	if old != s {
		c.logger.Debug("Connection status changed", "from", old.String(), "to", s.String())
	}
}

func (c *Client) Reconnects() uint64 {
	return c.reconnects.Load()
}

func (c *Client) options() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.cfg.MaxReconnects),
		nats.ReconnectWait(c.cfg.ReconnectWait),
		nats.Timeout(c.cfg.Timeout),
		nats.RetryOnFailedConnect(true),
		nats.ConnectHandler(c.handleConnect),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
		nats.ErrorHandler(c.handleError),
	}

	if c.cfg.Username != "" && c.cfg.Password != "" {
		opts = append(opts, nats.UserInfo(c.cfg.Username, c.cfg.Password))
	}
	if c.cfg.Token != "" {
		opts = append(opts, nats.Token(c.cfg.Token))
	}
	if c.cfg.Name != "" {
		opts = append(opts, nats.Name(c.cfg.Name))
	}
	if c.cfg.secure() {
		opts = append(opts, nats.Secure())
	}
	if c.cfg.CAFile != "" {
		opts = append(opts, nats.RootCAs(c.cfg.CAFile))
	}
	if c.cfg.CertFile != "" && c.cfg.KeyFile != "" {
		opts = append(opts, nats.ClientCert(c.cfg.CertFile, c.cfg.KeyFile))
	}
	return opts
}

// Connect dials the server. An unreachable server does not lose the
// connection: it is kept and retried in the background, publishes are
// buffered meanwhile, and Connect reports a transient error. Calling Connect
// again on a held connection only reports its state.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.RLock()
	held := c.conn
	c.mu.RUnlock()
	if held != nil && !held.IsClosed() {
		if held.IsConnected() {
			return nil
		}
		return broker.Transient("connect", broker.ErrNotConnected)
	}

	c.setStatus(StatusConnecting)
	c.logger.Info("Connecting to NATS", "url", c.cfg.URL)

	type result struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := nats.Connect(c.cfg.URL, c.options()...)
		done <- result{conn: conn, err: err}
	}()

	var conn *nats.Conn
	select {
	case r := <-done:
		if r.err != nil {
			c.setStatus(StatusDisconnected)
			return broker.Transient("connect", r.err)
		}
		conn = r.conn
	case <-ctx.Done():
		c.setStatus(StatusDisconnected)
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
		return broker.Transient("connect", ctx.Err())
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if !conn.IsConnected() {
		c.setStatus(StatusReconnecting)
		c.logger.Warn("NATS unreachable, retrying in background", "url", c.cfg.URL)
		return broker.Transient("connect", broker.ErrNotConnected)
	}

	c.setStatus(StatusConnected)
	c.logger.Info("Connected to NATS", "url", c.cfg.URL)
	return nil
}

func (c *Client) connected() (*nats.Conn, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return nil, broker.ErrNotConnected
	}
	return conn, nil
}

// Publish sends data on subject. While the client is reconnecting NATS
// buffers the payload.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := c.connected()
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if err := conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (c *Client) Subscribe(subject string, handler broker.MessageHandler) (broker.Subscription, error) {
	conn, err := c.connected()
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}

	ns, err := conn.Subscribe(subject, func(m *nats.Msg) {
		handler(m.Subject, m.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}

	c.logger.Debug("Subscribed", "subject", subject)
	return &subscription{sub: ns}, nil
}

// Close drains subscriptions and closes the connection. Closing twice is a
// no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	var err error
	if conn.IsConnected() {
		if err = conn.Drain(); err != nil {
			conn.Close()
		}
	} else {
		conn.Close()
	}
	c.setStatus(StatusClosed)
	c.logger.Info("NATS connection closed")
	if err != nil {
		return fmt.Errorf("drain: %w", err)
	}
	return nil
}

// handleConnect fires when a connection retried in the background comes up.
func (c *Client) handleConnect(conn *nats.Conn) {
	c.setStatus(StatusConnected)
	c.logger.Info("Connected to NATS", "url", conn.ConnectedUrl())
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	if c.Status() == StatusClosed {
		return
	}
	c.setStatus(StatusReconnecting)
	if err != nil {
		c.logger.Warn("Disconnected from NATS", "error", err)
		return
	}
	c.logger.Warn("Disconnected from NATS")
}

func (c *Client) handleReconnect(conn *nats.Conn) {
	c.reconnects.Add(1)
	c.setStatus(StatusConnected)
	c.logger.Info("Reconnected to NATS", "url", conn.ConnectedUrl())
}

func (c *Client) handleClosed(_ *nats.Conn) {
	c.setStatus(StatusClosed)
}

func (c *Client) handleError(_ *nats.Conn, sub *nats.Subscription, err error) {
	if sub != nil {
		c.logger.Error("NATS async error", "subject", sub.Subject, "error", err)
		return
	}
	c.logger.Error("NATS async error", "error", err)
}

type subscription struct {
	sub *nats.Subscription
}

func (s *subscription) Subject() string {
	return s.sub.Subject
}

func (s *subscription) Unsubscribe() error {
	if !s.sub.IsValid() {
		return nil
	}
	if err := s.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", s.sub.Subject, err)
	}
	return nil
}

var _ broker.Transport = (*Client)(nil)
