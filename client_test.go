package interactive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mixhq.io/interactive/transport"
)

// fakeServer scripts a service endpoint on a TestTransport: it greets with
// hello and answers every call through handle. It tracks the negotiated
// scheme so frames after a setCompression exchange are framed correctly.
type fakeServer struct {
	tr     *transport.TestTransport
	handle func(method string, params map[string]any) (string, *ReplyError)

	mu     sync.Mutex
	scheme Scheme
	seq    uint32

	calls []string
}

func newFakeServer(handle func(method string, params map[string]any) (string, *ReplyError)) *fakeServer {
	srv := &fakeServer{
		tr:     transport.NewTestTransport(),
		handle: handle,
		scheme: SchemeNone,
	}
	srv.tr.OnWrite = srv.onFrame
	srv.tr.AddResponse([]byte(`{"type":"method","id":0,"seq":0,"method":"hello","params":{}}`))
	return srv
}

func (srv *fakeServer) onFrame(frame []byte) {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	raw, err := srv.scheme.Decode(frame)
	if err != nil {
		panic(fmt.Sprintf("fakeServer: bad frame: %v", err))
	}
	pkts, err := DecodePackets(raw)
	if err != nil {
		panic(fmt.Sprintf("fakeServer: bad packets: %v", err))
	}

	for _, pkt := range pkts {
		srv.calls = append(srv.calls, pkt.Method)
		if pkt.Discard || srv.handle == nil {
			continue
		}

		params := map[string]any{}
		if len(pkt.Params) > 0 {
			_ = json.Unmarshal(pkt.Params, &params)
		}
		result, replyErr := srv.handle(pkt.Method, params)

		srv.seq++
		reply := fmt.Sprintf(`{"type":"reply","id":%d,"seq":%d`, pkt.ID, srv.seq)
		if replyErr != nil {
			errJSON, _ := json.Marshal(replyErr)
			reply += `,"error":` + string(errJSON) + `}`
		} else {
			if result == "" {
				result = "null"
			}
			reply += `,"result":` + result + `}`
		}

		framed, err := srv.scheme.Encode([]byte(reply))
		if err != nil {
			panic(err)
		}
		srv.tr.AddResponse(framed)

		// The reply to setCompression is still encoded under the old
		// scheme; frames after it use the scheme the reply settled on.
		if pkt.Method == methodSetCompression && replyErr == nil {
			var settled struct {
				Scheme string `json:"scheme"`
			}
			if err := json.Unmarshal([]byte(result), &settled); err == nil {
				srv.scheme = ParseScheme(settled.Scheme)
			}
		}
	}
}

func (srv *fakeServer) methods() []string {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	out := make([]string, len(srv.calls))
	copy(out, srv.calls)
	return out
}

func hostsServer(t *testing.T, addrs ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hosts := make([]Host, len(addrs))
		for i, addr := range addrs {
			hosts[i] = Host{Address: addr}
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(hosts))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, hosts *httptest.Server, dial DialFunc, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithDiscoveryURL(hosts.URL),
		WithDialer(dial),
		WithLogger(discardLogger()),
		WithHandshakeTimeout(200 * time.Millisecond),
	}, opts...)
	c := New(1234, "token", opts...)
	t.Cleanup(func() { _ = c.Disconnect() })
	return c
}

func TestConnectFailover(t *testing.T) {
	hosts := hostsServer(t, "wss://a.example", "wss://b.example", "wss://c.example")

	good := newFakeServer(nil)
	dial := func(ctx context.Context, addr string) (transport.Transport, error) {
		switch addr {
		case "wss://a.example":
			// Dials fine but never completes the handshake.
			return transport.NewTestTransport(), nil
		case "wss://b.example":
			return nil, errors.New("websocket: bad handshake (HTTP 401)")
		default:
			return good.tr, nil
		}
	}

	c := newTestClient(t, hosts, dial)
	sub := c.Subscribe(8)
	defer sub.Close()

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, StateOpen, c.State())

	// The service's hello is published as an event too, and may arrive
	// before or after the connection established event.
	var connected ConnectedEvent
	for found := false; !found; {
		select {
		case ev := <-sub.C:
			if _, hello := ev.Body.(HelloEvent); hello {
				continue
			}
			var ok bool
			connected, ok = ev.Body.(ConnectedEvent)
			require.True(t, ok, "got %T", ev.Body)
			found = true
		case <-time.After(time.Second):
			t.Fatal("no connection established event")
		}
	}
	assert.Equal(t, "wss://c.example", connected.Address)

	select {
	case ev := <-sub.C:
		if _, ok := ev.Body.(ConnectedEvent); ok {
			t.Fatal("connection established event fired twice")
		}
	default:
	}
}

func TestConnectAllCandidatesFail(t *testing.T) {
	hosts := hostsServer(t, "wss://a.example", "wss://b.example")

	dial := func(ctx context.Context, addr string) (transport.Transport, error) {
		if addr == "wss://a.example" {
			return transport.NewTestTransport(), nil // handshake timeout
		}
		return nil, errors.New("connection refused")
	}

	c := newTestClient(t, hosts, dial)
	err := c.Connect(context.Background())

	var connectErr *ConnectError
	require.ErrorAs(t, err, &connectErr)
	require.Len(t, connectErr.Errs.Errors, 2)
	assert.Contains(t, connectErr.Errs.Errors[0].Error(), "wss://a.example")
	assert.Contains(t, connectErr.Errs.Errors[1].Error(), "wss://b.example")
}

func TestConnectNoHosts(t *testing.T) {
	hosts := hostsServer(t)
	c := newTestClient(t, hosts, func(ctx context.Context, addr string) (transport.Transport, error) {
		t.Fatal("dial must not be called with no hosts")
		return nil, nil
	})

	err := c.Connect(context.Background())
	require.ErrorIs(t, err, ErrNoHostsFound)
}

func connectedClient(t *testing.T, srv *fakeServer, opts ...Option) *Client {
	t.Helper()
	hosts := hostsServer(t, "wss://only.example")
	c := newTestClient(t, hosts, func(ctx context.Context, addr string) (transport.Transport, error) {
		return srv.tr, nil
	}, opts...)
	require.NoError(t, c.Connect(context.Background()))
	return c
}

func TestClientGetTime(t *testing.T) {
	srv := newFakeServer(func(method string, params map[string]any) (string, *ReplyError) {
		require.Equal(t, methodGetTime, method)
		return `{"time":1700000000000}`, nil
	})
	c := connectedClient(t, srv)

	got, err := c.GetTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1700000000000), got)
}

func TestClientReady(t *testing.T) {
	srv := newFakeServer(func(method string, params map[string]any) (string, *ReplyError) {
		require.Equal(t, methodReady, method)
		assert.Equal(t, true, params["isReady"])
		return "", nil
	})
	c := connectedClient(t, srv)

	require.NoError(t, c.Ready(context.Background(), true))
}

func TestClientSetCompression(t *testing.T) {
	srv := newFakeServer(func(method string, params map[string]any) (string, *ReplyError) {
		if method != methodSetCompression {
			return "null", nil
		}
		// Unknown names filtered out, duplicates collapsed, order kept.
		assert.Equal(t, []any{"lz4", "gzip", "none"}, params["scheme"])
		return `{"scheme":"gzip"}`, nil
	})
	c := connectedClient(t, srv)

	scheme, err := c.SetCompression(context.Background(), "lz4", "zstd", "gzip", "lz4", "none")
	require.NoError(t, err)
	assert.Equal(t, SchemeGzip, scheme)

	// The very next outbound frame is gzip-encoded; the fake server panics
	// on an undecodable frame, so a clean reply proves the swap.
	require.NoError(t, c.Ready(context.Background(), true))
}

func TestClientSetCompressionServerPicksGzip(t *testing.T) {
	// Server may settle on any offered scheme; the client applies the reply
	// value, not its own first preference.
	srv := newFakeServer(func(method string, params map[string]any) (string, *ReplyError) {
		if method == methodSetCompression {
			return `{"scheme":"gzip"}`, nil
		}
		return "null", nil
	})
	c := connectedClient(t, srv)

	// Server answers gzip even though lz4 was preferred.
	scheme, err := c.SetCompression(context.Background(), "lz4", "gzip", "none")
	require.NoError(t, err)
	assert.Equal(t, SchemeGzip, scheme)
}

func TestClientSetBandwidthThrottle(t *testing.T) {
	srv := newFakeServer(func(method string, params map[string]any) (string, *ReplyError) {
		require.Equal(t, methodSetBandwidthThrottle, method)
		rule := params["giveInput"].(map[string]any)
		assert.Equal(t, float64(10000000), rule["capacity"])
		assert.Equal(t, float64(3000000), rule["drainRate"])
		return "", nil
	})
	c := connectedClient(t, srv)

	err := c.SetBandwidthThrottle(context.Background(), map[string]ThrottleRule{
		"giveInput": {Capacity: 10000000, DrainRate: 3000000},
	})
	require.NoError(t, err)
}

func TestClientGetThrottleState(t *testing.T) {
	srv := newFakeServer(func(method string, params map[string]any) (string, *ReplyError) {
		require.Equal(t, methodGetThrottleState, method)
		return `{"giveInput":{"inserted":120,"rejected":3}}`, nil
	})
	c := connectedClient(t, srv)

	state, err := c.GetThrottleState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ThrottleState{"giveInput": {Inserted: 120, Rejected: 3}}, state)
}

func TestClientCallsBeforeConnect(t *testing.T) {
	hosts := hostsServer(t, "wss://never.example")
	c := newTestClient(t, hosts, func(ctx context.Context, addr string) (transport.Transport, error) {
		return nil, errors.New("unused")
	})

	_, err := c.GetTime(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestClientDisconnectFailsPending(t *testing.T) {
	// A server that never answers.
	srv := newFakeServer(nil)
	c := connectedClient(t, srv)

	done := make(chan error, 1)
	go func() {
		_, err := c.GetTime(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return len(srv.methods()) > 0 }, time.Second, time.Millisecond)
	require.NoError(t, c.Disconnect())

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("pending call not failed by disconnect")
	}
	assert.Equal(t, StateClosed, c.State())
}
