// Package ws implements the interactive transport over a websocket
// connection.
package ws

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ProtocolVersion is the interactive protocol revision spoken by this
// package, sent on the opening handshake.
const ProtocolVersion = "2.0"

const (
	headerProtocolVersion = "X-Protocol-Version"
	headerVersion         = "X-Interactive-Version"
	headerShareCode       = "X-Interactive-Sharecode"

	// Tokens with this prefix are alternate identity tokens and are passed
	// through on the Authorization header verbatim.
	xblTokenPrefix = "XBL3.0"

	defaultHandshakeTimeout = 10 * time.Second
	closeWriteWait          = time.Second
)

// Config carries the credentials bound to the opening websocket handshake.
type Config struct {
	// Token is the bearer token authorizing the session.
	Token string

	// VersionID is the interactive project version to attach to.
	VersionID uint32

	// ShareCode, if set, grants access to a shared project.
	ShareCode string

	// TLSConfig is used for wss endpoints. Nil means reasonable defaults.
	TLSConfig *tls.Config

	// HandshakeTimeout bounds the opening handshake.
	HandshakeTimeout time.Duration
}

// Transport is a websocket-backed transport. A single reader and a single
// writer may use it concurrently.
type Transport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Dial connects to a ws or wss endpoint and performs the interactive opening
// handshake.
func Dial(ctx context.Context, addr string, cfg *Config) (*Transport, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	timeout := cfg.HandshakeTimeout
	if timeout == 0 {
		timeout = defaultHandshakeTimeout
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
		TLSClientConfig:  cfg.TLSConfig,
	}

	conn, resp, err := dialer.DialContext(ctx, addr, handshakeHeader(cfg))
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", addr, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	return &Transport{conn: conn}, nil
}

// NewTransport wraps an already established websocket connection.
func NewTransport(conn *websocket.Conn) *Transport {
	return &Transport{conn: conn}
}

func handshakeHeader(cfg *Config) http.Header {
	hdr := http.Header{}
	hdr.Set(headerProtocolVersion, ProtocolVersion)
	hdr.Set(headerVersion, strconv.FormatUint(uint64(cfg.VersionID), 10))
	if cfg.ShareCode != "" {
		hdr.Set(headerShareCode, cfg.ShareCode)
	}
	if cfg.Token != "" {
		hdr.Set("Authorization", authorization(cfg.Token))
	}
	return hdr
}

func authorization(token string) string {
	if strings.HasPrefix(token, xblTokenPrefix) {
		return token
	}
	return "Bearer " + token
}

func (t *Transport) ReadMsg() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *Transport) WriteMsg(p []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.BinaryMessage, p)
}

// Close sends a close control frame and tears down the connection. The
// remote's close response is handled by the reader.
func (t *Transport) Close() error {
	t.writeMu.Lock()
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeWriteWait))
	t.writeMu.Unlock()
	return t.conn.Close()
}
