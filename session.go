package interactive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mixhq.io/interactive/transport"
)

// DefaultCallTimeout bounds how long a call waits for its reply.
const DefaultCallTimeout = 15 * time.Second

// State is the lifecycle of one session. Transitions are one-way within a
// single session instance; reconnecting creates a fresh session.
type State int32

const (
	StateClosed State = iota
	StateDialing
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDialing:
		return "dialing"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// Session is one connection to the interactive service. It owns the packet
// id counter and the pending-request table, frames outbound calls through
// the negotiated compression scheme, and routes inbound packets: replies to
// their pending calls, methods to the dispatcher.
type Session struct {
	tr       transport.Transport
	dispatch *Dispatcher
	logger   *slog.Logger
	timeout  time.Duration

	id  atomic.Uint32 // packet ids, fresh per session, never reused
	seq atomic.Uint32 // outbound sequence numbers

	scheme atomic.Value // Scheme, mutated only from the reader loop and SetScheme

	// writeMu serializes frame encoding and writes so that wire order
	// matches sequence order.
	writeMu sync.Mutex

	mu      sync.Mutex
	reqs    map[uint32]*pendingReq
	closing bool

	state atomic.Int32

	helloOnce sync.Once
	helloCh   chan struct{}
	closedCh  chan struct{}
}

type pendingReq struct {
	method string
	// reply receives at most one packet and is closed only when the session
	// tears down without resolving it.
	reply chan *Packet
}

// NewSession wraps an already dialed transport. Start must be called before
// any traffic flows.
func NewSession(tr transport.Transport, dispatch *Dispatcher, logger *slog.Logger, timeout time.Duration) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	s := &Session{
		tr:       tr,
		dispatch: dispatch,
		logger:   logger,
		timeout:  timeout,
		reqs:     make(map[uint32]*pendingReq),
		helloCh:  make(chan struct{}),
		closedCh: make(chan struct{}),
	}
	s.scheme.Store(SchemeNone)
	s.state.Store(int32(StateDialing))
	return s
}

// Start launches the reader loop. The session stays in the dialing state
// until the service's hello arrives.
func (s *Session) Start() {
	go s.recvLoop()
}

// State reports the session lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Hello is closed once the service's hello event has been observed.
func (s *Session) Hello() <-chan struct{} { return s.helloCh }

// Done is closed when the reader loop has exited and every pending call has
// been failed.
func (s *Session) Done() <-chan struct{} { return s.closedCh }

// Scheme reports the compression scheme currently applied to both
// directions.
func (s *Session) Scheme() Scheme {
	return s.scheme.Load().(Scheme)
}

// SetScheme swaps the compression scheme. The swap happens between frames:
// the writer is quiesced for the duration so no frame straddles the change.
func (s *Session) SetScheme(sc Scheme) {
	s.writeMu.Lock()
	s.scheme.Store(sc)
	s.writeMu.Unlock()
}

// Call sends a method and waits for its reply, the per-request timeout, the
// context, or connection teardown, whichever resolves first. A service error
// reply is returned as *ReplyError. The reply's result payload, if any, is
// decoded into result when result is non-nil.
func (s *Session) Call(ctx context.Context, method string, params, result any) error {
	raw, err := marshalParams(params)
	if err != nil {
		return err
	}

	id := s.id.Add(1) - 1
	req := &pendingReq{method: method, reply: make(chan *Packet, 1)}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return ErrClosed
	}
	s.reqs[id] = req
	s.mu.Unlock()

	pkt := &Packet{Type: PacketMethod, ID: id, Method: method, Params: raw}
	if err := s.send(pkt); err != nil {
		s.forget(id)
		return fmt.Errorf("interactive: send %s: %w", method, err)
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case reply, ok := <-req.reply:
		if !ok {
			return ErrClosed
		}
		return decodeReply(method, reply, result)

	case <-timer.C:
		s.mu.Lock()
		_, pending := s.reqs[id]
		delete(s.reqs, id)
		s.mu.Unlock()
		if !pending {
			// The reply won the race against the timer; honor it.
			if reply, ok := <-req.reply; ok {
				return decodeReply(method, reply, result)
			}
			return ErrClosed
		}
		return fmt.Errorf("interactive: %s: %w", method, ErrReplyTimeout)

	case <-ctx.Done():
		s.forget(id)
		return ctx.Err()
	}
}

// Notify sends a method flagged as needing no reply. No pending record is
// installed and no result is ever reported.
func (s *Session) Notify(method string, params any) error {
	raw, err := marshalParams(params)
	if err != nil {
		return err
	}
	pkt := &Packet{Type: PacketMethod, ID: s.id.Add(1) - 1, Method: method, Params: raw, Discard: true}
	if err := s.send(pkt); err != nil {
		return fmt.Errorf("interactive: send %s: %w", method, err)
	}
	return nil
}

// Close tears the session down. Every pending call fails with ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		<-s.closedCh
		return nil
	}
	s.closing = true
	s.mu.Unlock()

	s.state.Store(int32(StateClosing))
	err := s.tr.Close()
	<-s.closedCh
	return err
}

func marshalParams(params any) ([]byte, error) {
	if params == nil {
		params = struct{}{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, &CodecError{Err: fmt.Errorf("encode params: %w", err)}
	}
	return raw, nil
}

func decodeReply(method string, reply *Packet, result any) error {
	if reply.Error != nil {
		replyErr := *reply.Error
		replyErr.Method = method
		return &replyErr
	}
	if result != nil && len(reply.Result) > 0 {
		if err := json.Unmarshal(reply.Result, result); err != nil {
			return &CodecError{Err: fmt.Errorf("decode %s result: %w", method, err)}
		}
	}
	return nil
}

func (s *Session) forget(id uint32) {
	s.mu.Lock()
	delete(s.reqs, id)
	s.mu.Unlock()
}

func (s *Session) send(p *Packet) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	p.Seq = s.seq.Add(1) - 1
	data, err := EncodePacket(p)
	if err != nil {
		return err
	}
	framed, err := s.Scheme().Encode(data)
	if err != nil {
		return err
	}
	return s.tr.WriteMsg(framed)
}

// recvLoop is the single reader task. It drains inbound frames, resolves
// replies against the pending table, and hands method batches to the
// dispatcher. On exit it fails every pending call exactly once.
func (s *Session) recvLoop() {
	for {
		data, err := s.tr.ReadMsg()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if !closing {
				s.logger.Warn("interactive: connection closed unexpectedly", "err", err)
			}
			break
		}

		raw, err := s.Scheme().Decode(data)
		if err != nil {
			s.logger.Warn("interactive: dropping undecompressable frame", "err", err)
			continue
		}

		pkts, err := DecodePackets(raw)
		if err != nil {
			s.logger.Warn("interactive: dropping malformed frame", "err", err)
			continue
		}

		var methods []Packet
		for i := range pkts {
			if pkts[i].Type == PacketReply {
				s.resolve(&pkts[i])
				continue
			}
			methods = append(methods, pkts[i])
		}
		if len(methods) > 0 {
			s.handleMethods(methods)
		}
	}

	s.teardown()
}

func (s *Session) resolve(pkt *Packet) {
	s.mu.Lock()
	req, ok := s.reqs[pkt.ID]
	delete(s.reqs, pkt.ID)
	if ok {
		// Buffered and owned solely by this request; never blocks.
		req.reply <- pkt
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Debug("interactive: reply with no pending request", "id", pkt.ID)
	}
}

// handleMethods applies session lifecycle side effects, then hands the batch
// to the dispatcher. The compression swap lands here, between the frame that
// carried the setCompression event and the next read.
func (s *Session) handleMethods(pkts []Packet) {
	for i := range pkts {
		switch pkts[i].Method {
		case eventHello:
			s.completeHandshake()
		case eventSetCompression:
			var v struct {
				Scheme string `json:"scheme"`
			}
			if err := unmarshalParams(&pkts[i], &v); err != nil {
				s.logger.Warn("interactive: bad setCompression params", "err", err)
				continue
			}
			s.SetScheme(ParseScheme(v.Scheme))
		}
	}
	s.dispatch.Dispatch(pkts)
}

func (s *Session) completeHandshake() {
	s.helloOnce.Do(func() {
		s.state.CompareAndSwap(int32(StateDialing), int32(StateOpen))
		close(s.helloCh)
	})
}

func (s *Session) teardown() {
	s.mu.Lock()
	s.closing = true
	reqs := s.reqs
	s.reqs = make(map[uint32]*pendingReq)
	s.mu.Unlock()

	for _, req := range reqs {
		close(req.reply)
	}

	s.state.Store(int32(StateClosed))
	_ = s.tr.Close()
	close(s.closedCh)
}
