package interactive

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/mitchellh/mapstructure"
)

// Event is one server-originated notification. RequestID echoes the packet
// id of the method that delivered it and Seq its sequence number; both are
// diagnostic, correlation never uses them. Body is the typed variant.
type Event struct {
	RequestID uint32
	Seq       uint32
	Body      EventBody
}

// EventBody is the closed set of event variants, plus UndefinedEvent for
// method names this client does not know.
type EventBody interface {
	eventBody()
}

type (
	// HelloEvent completes the connection handshake.
	HelloEvent struct{}

	// ReadyEvent reports a change of the session's ready flag.
	ReadyEvent struct {
		IsReady bool `json:"isReady"`
	}

	// CompressionEvent announces the scheme all subsequent frames use.
	CompressionEvent struct {
		Scheme Scheme `json:"scheme"`
	}

	// MemoryWarningEvent warns that the scene graph is near its size budget.
	MemoryWarningEvent struct {
		UsedBytes  uint64         `json:"usedBytes"`
		TotalBytes uint64         `json:"totalBytes"`
		Resources  map[string]any `json:"resources,omitempty"`
	}

	// ConnectedEvent fires once per successful connect, naming the endpoint
	// the handshake completed against.
	ConnectedEvent struct {
		Address string
	}

	ParticipantJoinEvent struct {
		Participants []Participant `json:"participants"`
	}

	ParticipantLeaveEvent struct {
		Participants []Participant `json:"participants"`
	}

	ParticipantUpdateEvent struct {
		Participants []Participant `json:"participants"`
	}

	GroupCreateEvent struct {
		Groups []Group `json:"groups"`
	}

	GroupUpdateEvent struct {
		Groups []Group `json:"groups"`
	}

	GroupDeleteEvent struct {
		GroupID         string `json:"groupID"`
		ReassignGroupID string `json:"reassignGroupID"`
	}

	SceneCreateEvent struct {
		Scenes []Scene `json:"scenes"`
	}

	SceneUpdateEvent struct {
		Scenes []Scene `json:"scenes"`
	}

	SceneDeleteEvent struct {
		SceneID         string `json:"sceneID"`
		ReassignSceneID string `json:"reassignSceneID"`
	}

	ControlCreateEvent struct {
		SceneID  string    `json:"sceneID"`
		Controls []Control `json:"controls"`
	}

	ControlUpdateEvent struct {
		SceneID  string    `json:"sceneID"`
		Controls []Control `json:"controls"`
	}

	ControlDeleteEvent struct {
		SceneID    string   `json:"sceneID"`
		ControlIDs []string `json:"controlIDs"`
	}

	// InputEvent carries one participant input on one control.
	InputEvent struct {
		ParticipantID string `json:"participantID"`
		TransactionID string `json:"transactionID,omitempty"`
		Input         Input  `json:"input"`
	}

	// UndefinedEvent carries a method this client does not recognize, with
	// its raw parameter map intact.
	UndefinedEvent struct {
		Method string
		Params map[string]any
	}
)

func (HelloEvent) eventBody()             {}
func (ReadyEvent) eventBody()             {}
func (CompressionEvent) eventBody()       {}
func (MemoryWarningEvent) eventBody()     {}
func (ConnectedEvent) eventBody()         {}
func (ParticipantJoinEvent) eventBody()   {}
func (ParticipantLeaveEvent) eventBody()  {}
func (ParticipantUpdateEvent) eventBody() {}
func (GroupCreateEvent) eventBody()       {}
func (GroupUpdateEvent) eventBody()       {}
func (GroupDeleteEvent) eventBody()       {}
func (SceneCreateEvent) eventBody()       {}
func (SceneUpdateEvent) eventBody()       {}
func (SceneDeleteEvent) eventBody()       {}
func (ControlCreateEvent) eventBody()     {}
func (ControlUpdateEvent) eventBody()     {}
func (ControlDeleteEvent) eventBody()     {}
func (InputEvent) eventBody()             {}
func (UndefinedEvent) eventBody()         {}

// Input is the heterogeneous payload of a giveInput event. ControlID and
// Event are common to every input kind; the rest varies per control and is
// kept in Raw.
type Input struct {
	ControlID string
	Event     string
	Raw       map[string]any
}

func (in *Input) UnmarshalJSON(data []byte) error {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	in.Raw = raw
	if v, ok := raw["controlID"].(string); ok {
		in.ControlID = v
	}
	if v, ok := raw["event"].(string); ok {
		in.Event = v
	}
	return nil
}

func (in Input) MarshalJSON() ([]byte, error) {
	return json.Marshal(in.Raw)
}

// Decode maps the raw input payload onto a caller-supplied struct, matching
// fields case-insensitively by name or by a `mapstructure` tag.
func (in *Input) Decode(v any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           v,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in.Raw)
}

// Subscription is one subscriber's queue of events. Events are dropped,
// not blocked on, when C is full.
type Subscription struct {
	C chan Event

	d    *Dispatcher
	once sync.Once
}

// Close removes the subscription from the dispatcher and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.d.remove(s)
		close(s.C)
	})
}

// Dispatcher maps inbound method packets to typed events and fans them out
// to subscribers. It owns the subscriber registry and the last-seen sequence
// number; it outlives any single session.
type Dispatcher struct {
	logger *slog.Logger

	lastSeq atomic.Uint32

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger: logger,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscriber with the given queue capacity.
func (d *Dispatcher) Subscribe(buf int) *Subscription {
	if buf <= 0 {
		buf = 64
	}
	sub := &Subscription{C: make(chan Event, buf), d: d}
	d.mu.Lock()
	d.subs[sub] = struct{}{}
	d.mu.Unlock()
	return sub
}

func (d *Dispatcher) remove(sub *Subscription) {
	d.mu.Lock()
	delete(d.subs, sub)
	d.mu.Unlock()
}

// LastSeq reports the highest sequence number seen from the service.
func (d *Dispatcher) LastSeq() uint32 {
	return d.lastSeq.Load()
}

// Dispatch delivers a batch of method packets that arrived in one frame.
// The batch is sorted by ascending sequence number before delivery;
// subscribers observe events one at a time in that order.
func (d *Dispatcher) Dispatch(pkts []Packet) {
	if len(pkts) > 1 {
		sort.SliceStable(pkts, func(i, j int) bool { return pkts[i].Seq < pkts[j].Seq })
	}
	for i := range pkts {
		pkt := &pkts[i]
		if seq := pkt.Seq; seq > d.lastSeq.Load() {
			d.lastSeq.Store(seq)
		}
		d.publish(Event{
			RequestID: pkt.ID,
			Seq:       pkt.Seq,
			Body:      d.decodeBody(pkt),
		})
	}
}

// Announce publishes a locally generated event, such as ConnectedEvent.
func (d *Dispatcher) Announce(body EventBody) {
	d.publish(Event{Seq: d.lastSeq.Load(), Body: body})
}

func (d *Dispatcher) publish(ev Event) {
	d.mu.Lock()
	subs := make([]*Subscription, 0, len(d.subs))
	for sub := range d.subs {
		subs = append(subs, sub)
	}
	d.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.C <- ev:
		default:
			d.logger.Warn("interactive: dropping event, subscriber queue full",
				"seq", ev.Seq)
		}
	}
}

// decodeBody maps one method packet to its event variant. Unknown methods,
// unknown packet kinds, and undecodable params all degrade to UndefinedEvent
// so newer service versions cannot break the client.
func (d *Dispatcher) decodeBody(pkt *Packet) EventBody {
	var (
		body EventBody
		err  error
	)

	if pkt.Type != PacketMethod {
		return undefined(pkt)
	}

	switch pkt.Method {
	case eventHello:
		body = HelloEvent{}
	case eventOnReady:
		body, err = decodeParams[ReadyEvent](pkt)
	case eventSetCompression:
		var v struct {
			Scheme string `json:"scheme"`
		}
		if err = unmarshalParams(pkt, &v); err == nil {
			body = CompressionEvent{Scheme: ParseScheme(v.Scheme)}
		}
	case eventMemoryWarning:
		body, err = decodeParams[MemoryWarningEvent](pkt)
	case eventParticipantJoin:
		body, err = decodeParams[ParticipantJoinEvent](pkt)
	case eventParticipantLeave:
		body, err = decodeParams[ParticipantLeaveEvent](pkt)
	case eventParticipantUpdate:
		body, err = decodeParams[ParticipantUpdateEvent](pkt)
	case eventGroupCreate:
		body, err = decodeParams[GroupCreateEvent](pkt)
	case eventGroupUpdate:
		body, err = decodeParams[GroupUpdateEvent](pkt)
	case eventGroupDelete:
		body, err = decodeParams[GroupDeleteEvent](pkt)
	case eventSceneCreate:
		body, err = decodeParams[SceneCreateEvent](pkt)
	case eventSceneUpdate:
		body, err = decodeParams[SceneUpdateEvent](pkt)
	case eventSceneDelete:
		body, err = decodeParams[SceneDeleteEvent](pkt)
	case eventControlCreate:
		body, err = decodeParams[ControlCreateEvent](pkt)
	case eventControlUpdate:
		body, err = decodeParams[ControlUpdateEvent](pkt)
	case eventControlDelete:
		body, err = decodeParams[ControlDeleteEvent](pkt)
	case eventGiveInput:
		body, err = decodeParams[InputEvent](pkt)
	default:
		return undefined(pkt)
	}

	if err != nil {
		d.logger.Warn("interactive: undecodable event params",
			"method", pkt.Method, "err", err)
		return undefined(pkt)
	}
	return body
}

func decodeParams[T EventBody](pkt *Packet) (EventBody, error) {
	var v T
	if err := unmarshalParams(pkt, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func unmarshalParams(pkt *Packet, v any) error {
	if len(pkt.Params) == 0 {
		return nil
	}
	return json.Unmarshal(pkt.Params, v)
}

func undefined(pkt *Packet) UndefinedEvent {
	params := map[string]any{}
	if len(pkt.Params) > 0 {
		// Best effort; an unparseable param object stays empty.
		_ = json.Unmarshal(pkt.Params, &params)
	}
	return UndefinedEvent{Method: pkt.Method, Params: params}
}
