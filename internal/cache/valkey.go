package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/steelstack/millwatch/internal/utils"
)

// ValkeyConfig holds connection parameters for a Valkey or Redis-compatible
// server.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
	TLS          bool
}

func (c ValkeyConfig) withDefaults() ValkeyConfig {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 2 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 500 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 500 * time.Millisecond
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

// ValkeyProvider implements Provider over a single pooled connection. The
// assessment handlers are the only callers and their payloads are tiny, so
// one connection behind a mutex is enough; the TLS and AUTH round trips
// happen once instead of on every GET.
type ValkeyProvider struct {
	cfg ValkeyConfig

	mu   sync.Mutex
	conn *serverConn
}

// NewValkeyProvider validates the config and pings the server once, so a bad
// address or credential surfaces at startup rather than on first request.
func NewValkeyProvider(cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}
	p := &ValkeyProvider{cfg: cfg.withDefaults()}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.DialTimeout)
	defer cancel()
	if err := p.ping(ctx); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

// Get fetches a key, mapping the nil reply onto ErrCacheMiss.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	rep, err := p.do(ctx, "valkey.get", []byte("GET"), []byte(key))
	if err != nil {
		return nil, err
	}
	switch rep.kind {
	case kindNil:
		return nil, ErrCacheMiss
	case kindBulk:
		return rep.data, nil
	default:
		return nil, utils.OpErr("valkey.get", fmt.Errorf("unexpected reply kind %d", rep.kind))
	}
}

// Set stores a value. A positive ttl becomes a PX expiry; zero or below
// stores without one.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := [][]byte{[]byte("SET"), []byte(key), value}
	if ttl > 0 {
		args = append(args, []byte("PX"), []byte(strconv.FormatInt(ttl.Milliseconds(), 10)))
	}
	rep, err := p.do(ctx, "valkey.set", args...)
	if err != nil {
		return err
	}
	if rep.kind != kindSimple || string(rep.data) != "OK" {
		return utils.OpErr("valkey.set", fmt.Errorf("unexpected reply %q", rep.data))
	}
	return nil
}

// Del removes a key. Deleting an absent key is not an error.
func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	_, err := p.do(ctx, "valkey.del", []byte("DEL"), []byte(key))
	return err
}

// Close drops the pooled connection.
func (p *ValkeyProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropLocked()
	return nil
}

func (p *ValkeyProvider) ping(ctx context.Context) error {
	rep, err := p.do(ctx, "valkey.ping", []byte("PING"))
	if err != nil {
		return err
	}
	if rep.kind != kindSimple || string(rep.data) != "PONG" {
		return utils.OpErr("valkey.ping", fmt.Errorf("unexpected reply %q", rep.data))
	}
	return nil
}

// do runs one command, retrying transport failures on a fresh connection up
// to MaxRetries times. Failures come back tagged with the operation name.
func (p *ValkeyProvider) do(ctx context.Context, op string, args ...[]byte) (reply, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return reply{}, utils.OpErr(op, err)
		}
		if attempt > 0 {
			time.Sleep(retryDelay(attempt))
		}
		conn, err := p.connLocked(ctx)
		if err != nil {
			lastErr = err
			if retryable(err) {
				continue
			}
			return reply{}, utils.OpErr(op, err)
		}
		rep, err := conn.roundTrip(p.cfg, args...)
		if err == nil {
			return rep, nil
		}
		p.dropLocked()
		lastErr = err
		if !retryable(err) {
			return reply{}, utils.OpErr(op, err)
		}
	}
	return reply{}, utils.OpErr(op, lastErr)
}

func (p *ValkeyProvider) connLocked(ctx context.Context) (*serverConn, error) {
	if p.conn != nil {
		return p.conn, nil
	}
	conn, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	if err := conn.handshake(p.cfg); err != nil {
		conn.close()
		return nil, err
	}
	p.conn = conn
	return conn, nil
}

func (p *ValkeyProvider) dropLocked() {
	if p.conn != nil {
		p.conn.close()
		p.conn = nil
	}
}

func (p *ValkeyProvider) dial(ctx context.Context) (*serverConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.DialTimeout)
	defer cancel()

	var d net.Dialer
	raw, err := d.DialContext(dialCtx, "tcp", p.cfg.Addr)
	if err != nil {
		return nil, err
	}
	if p.cfg.TLS {
		host, _, splitErr := net.SplitHostPort(p.cfg.Addr)
		if splitErr != nil {
			host = p.cfg.Addr
		}
		tlsConn := tls.Client(raw, &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
		if err := tlsConn.HandshakeContext(dialCtx); err != nil {
			_ = raw.Close()
			return nil, err
		}
		raw = tlsConn
	}
	return &serverConn{
		raw: raw,
		r:   bufio.NewReader(raw),
		w:   bufio.NewWriter(raw),
	}, nil
}

// serverConn is one authenticated connection with buffered RESP I/O.
type serverConn struct {
	raw net.Conn
	r   *bufio.Reader
	w   *bufio.Writer
}

func (c *serverConn) close() { _ = c.raw.Close() }

// handshake authenticates and selects the configured database.
func (c *serverConn) handshake(cfg ValkeyConfig) error {
	if cfg.Password != "" {
		args := [][]byte{[]byte("AUTH")}
		if cfg.Username != "" {
			args = append(args, []byte(cfg.Username))
		}
		args = append(args, []byte(cfg.Password))
		if err := c.expectOK(cfg, args...); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if cfg.DB > 0 {
		if err := c.expectOK(cfg, []byte("SELECT"), []byte(strconv.Itoa(cfg.DB))); err != nil {
			return fmt.Errorf("select db %d: %w", cfg.DB, err)
		}
	}
	return nil
}

func (c *serverConn) expectOK(cfg ValkeyConfig, args ...[]byte) error {
	rep, err := c.roundTrip(cfg, args...)
	if err != nil {
		return err
	}
	if rep.kind != kindSimple || !strings.EqualFold(string(rep.data), "OK") {
		return fmt.Errorf("unexpected reply %q", rep.data)
	}
	return nil
}

// roundTrip writes one command and reads one reply under the configured
// deadlines.
func (c *serverConn) roundTrip(cfg ValkeyConfig, args ...[]byte) (reply, error) {
	if err := c.raw.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout)); err != nil {
		return reply{}, err
	}
	if err := encodeCommand(c.w, args...); err != nil {
		return reply{}, err
	}
	if err := c.raw.SetReadDeadline(time.Now().Add(cfg.ReadTimeout)); err != nil {
		return reply{}, err
	}
	return decodeReply(c.r)
}

// retryable reports whether a failure is worth another attempt on a fresh
// connection. Server "-" replies are definitive and never retry. An idle
// pooled connection the server has since closed surfaces as EOF on first
// use, so EOF retries.
func retryable(err error) bool {
	var srvErr serverError
	if errors.As(err, &srvErr) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func retryDelay(attempt int) time.Duration {
	d := time.Duration(attempt) * 50 * time.Millisecond
	if d > 500*time.Millisecond {
		d = 500 * time.Millisecond
	}
	return d
}
