package interactive

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"mixhq.io/interactive/transport"
	"mixhq.io/interactive/transport/ws"
)

// DefaultHandshakeTimeout bounds how long a connect attempt waits for the
// service's hello on each candidate endpoint.
const DefaultHandshakeTimeout = 5 * time.Second

// DialFunc dials one candidate endpoint. Tests substitute in-memory
// transports through WithDialer.
type DialFunc func(ctx context.Context, addr string) (transport.Transport, error)

type clientConfig struct {
	shareCode        string
	logger           *slog.Logger
	discoveryURL     string
	httpClient       *http.Client
	dial             DialFunc
	callTimeout      time.Duration
	handshakeTimeout time.Duration
	cache            bool
}

// Option configures a Client.
type Option interface {
	apply(*clientConfig)
}

type optionFunc func(*clientConfig)

func (f optionFunc) apply(cfg *clientConfig) { f(cfg) }

// WithShareCode attaches a project share code to the connection handshake.
func WithShareCode(code string) Option {
	return optionFunc(func(cfg *clientConfig) { cfg.shareCode = code })
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(cfg *clientConfig) { cfg.logger = l })
}

// WithDiscoveryURL overrides the host-discovery endpoint.
func WithDiscoveryURL(url string) Option {
	return optionFunc(func(cfg *clientConfig) { cfg.discoveryURL = url })
}

// WithHTTPClient sets the HTTP client used for host discovery.
func WithHTTPClient(h *http.Client) Option {
	return optionFunc(func(cfg *clientConfig) { cfg.httpClient = h })
}

// WithDialer overrides how candidate endpoints are dialed.
func WithDialer(dial DialFunc) Option {
	return optionFunc(func(cfg *clientConfig) { cfg.dial = dial })
}

// WithCallTimeout overrides the per-request reply timeout.
func WithCallTimeout(d time.Duration) Option {
	return optionFunc(func(cfg *clientConfig) { cfg.callTimeout = d })
}

// WithHandshakeTimeout overrides the per-endpoint handshake ceiling.
func WithHandshakeTimeout(d time.Duration) Option {
	return optionFunc(func(cfg *clientConfig) { cfg.handshakeTimeout = d })
}

// WithStateCache keeps an in-memory mirror of the scene graph, maintained
// from the event stream.
func WithStateCache() Option {
	return optionFunc(func(cfg *clientConfig) { cfg.cache = true })
}

// Client is the entry point to the interactive service. It binds a project
// version and a token, connects to a discovered endpoint, and exposes the
// resource services and the event stream.
type Client struct {
	versionID uint32
	token     string
	shareCode string

	logger           *slog.Logger
	callTimeout      time.Duration
	handshakeTimeout time.Duration

	discovery *DiscoveryClient
	dial      DialFunc
	dispatch  *Dispatcher
	cache     *StateCache

	mu      sync.Mutex
	session *Session

	participants *ParticipantService
	groups       *GroupService
	scenes       *SceneService
	controls     *ControlService
	transactions *TransactionService
}

// New creates a client for one project version, authorized by token. The
// token is used as a bearer credential unless it is an alternate identity
// token, which is passed through unchanged.
func New(versionID uint32, token string, opts ...Option) *Client {
	cfg := clientConfig{
		logger:           slog.Default(),
		callTimeout:      DefaultCallTimeout,
		handshakeTimeout: DefaultHandshakeTimeout,
	}
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	c := &Client{
		versionID:        versionID,
		token:            token,
		shareCode:        cfg.shareCode,
		logger:           cfg.logger,
		callTimeout:      cfg.callTimeout,
		handshakeTimeout: cfg.handshakeTimeout,
		discovery:        NewDiscoveryClient(cfg.discoveryURL, cfg.httpClient),
		dial:             cfg.dial,
		dispatch:         NewDispatcher(cfg.logger),
	}
	if c.dial == nil {
		c.dial = c.dialWebsocket
	}

	c.participants = &ParticipantService{c: c}
	c.groups = &GroupService{c: c}
	c.scenes = &SceneService{c: c}
	c.controls = &ControlService{c: c}
	c.transactions = &TransactionService{c: c}

	if cfg.cache {
		c.cache = newStateCache(cfg.logger)
		c.cache.run(c.dispatch.Subscribe(256))
	}
	return c
}

func (c *Client) dialWebsocket(ctx context.Context, addr string) (transport.Transport, error) {
	return ws.Dial(ctx, addr, &ws.Config{
		Token:            c.token,
		VersionID:        c.versionID,
		ShareCode:        c.shareCode,
		HandshakeTimeout: c.handshakeTimeout,
	})
}

// Connect discovers the candidate endpoints and tries each in order until a
// handshake completes. Per-candidate failures are suppressed and carried on
// the returned *ConnectError when every candidate fails. A successful
// connect publishes a ConnectedEvent exactly once.
func (c *Client) Connect(ctx context.Context) error {
	hosts, err := c.discovery.Hosts(ctx)
	if err != nil {
		return err
	}

	var errs *multierror.Error
	for _, host := range hosts {
		tr, err := c.dial(ctx, host.Address)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", host.Address, err))
			continue
		}

		sess := NewSession(tr, c.dispatch, c.logger, c.callTimeout)
		sess.Start()

		timer := time.NewTimer(c.handshakeTimeout)
		select {
		case <-sess.Hello():
			timer.Stop()
			c.mu.Lock()
			c.session = sess
			c.mu.Unlock()
			c.dispatch.Announce(ConnectedEvent{Address: host.Address})
			return nil

		case <-sess.Done():
			timer.Stop()
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", host.Address, ErrClosed))

		case <-timer.C:
			_ = sess.Close()
			errs = multierror.Append(errs, fmt.Errorf("%s: handshake timeout", host.Address))

		case <-ctx.Done():
			timer.Stop()
			_ = sess.Close()
			return ctx.Err()
		}
	}

	return &ConnectError{Errs: errs}
}

// Disconnect closes the connection. Pending calls fail with ErrClosed. The
// client does not re-dial on its own; Connect may be called again.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.mu.Unlock()

	if sess == nil {
		return nil
	}
	return sess.Close()
}

// State reports the current session state, or StateClosed when no session
// exists.
func (c *Client) State() State {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return StateClosed
	}
	return sess.State()
}

func (c *Client) currentSession() (*Session, error) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return nil, ErrClosed
	}
	return sess, nil
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	sess, err := c.currentSession()
	if err != nil {
		return err
	}
	return sess.Call(ctx, method, params, result)
}

// Subscribe registers for the event stream with the given queue capacity.
func (c *Client) Subscribe(buf int) *Subscription {
	return c.dispatch.Subscribe(buf)
}

// Ready toggles whether the session accepts participant input.
func (c *Client) Ready(ctx context.Context, isReady bool) error {
	params := struct {
		IsReady bool `json:"isReady"`
	}{IsReady: isReady}
	return c.call(ctx, methodReady, params, nil)
}

// GetTime returns the service's clock, for input timestamp alignment.
func (c *Client) GetTime(ctx context.Context) (time.Time, error) {
	var rep struct {
		Time int64 `json:"time"`
	}
	if err := c.call(ctx, methodGetTime, nil, &rep); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(rep.Time), nil
}

// GetMemoryStats reports the service-side memory accounting for the session.
func (c *Client) GetMemoryStats(ctx context.Context) (MemoryStats, error) {
	var rep MemoryStats
	err := c.call(ctx, methodGetMemoryStats, nil, &rep)
	return rep, err
}

// GetThrottleState reports the throttle counters per method.
func (c *Client) GetThrottleState(ctx context.Context) (ThrottleState, error) {
	var rep ThrottleState
	err := c.call(ctx, methodGetThrottleState, nil, &rep)
	return rep, err
}

// SetBandwidthThrottle configures the per-method leaky buckets the service
// applies to this session's traffic.
func (c *Client) SetBandwidthThrottle(ctx context.Context, rules map[string]ThrottleRule) error {
	return c.call(ctx, methodSetBandwidthThrottle, rules, nil)
}

// SetCompression negotiates a frame compression scheme from a
// preference-ordered list of names. Unknown names are dropped and duplicates
// removed before the request is sent. The scheme the service settled on is
// applied to the session before SetCompression returns.
func (c *Client) SetCompression(ctx context.Context, preferences ...string) (Scheme, error) {
	sess, err := c.currentSession()
	if err != nil {
		return SchemeNone, err
	}

	params := struct {
		Scheme []Scheme `json:"scheme"`
	}{Scheme: filterSchemes(preferences)}

	var rep struct {
		Scheme string `json:"scheme"`
	}
	if err := sess.Call(ctx, methodSetCompression, params, &rep); err != nil {
		return SchemeNone, err
	}

	scheme := ParseScheme(rep.Scheme)
	sess.SetScheme(scheme)
	return scheme, nil
}

// Participants returns the participant service.
func (c *Client) Participants() *ParticipantService { return c.participants }

// Groups returns the group service.
func (c *Client) Groups() *GroupService { return c.groups }

// Scenes returns the scene service.
func (c *Client) Scenes() *SceneService { return c.scenes }

// Controls returns the control service.
func (c *Client) Controls() *ControlService { return c.controls }

// Transactions returns the transaction service.
func (c *Client) Transactions() *TransactionService { return c.transactions }

// Cache returns the state cache, or nil when not enabled.
func (c *Client) Cache() *StateCache { return c.cache }
