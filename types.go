package interactive

import jsoniter "github.com/json-iterator/go"

// Participant is one audience member connected to the interactive session.
// Participants are identified by SessionID; UserID identifies the underlying
// account across reconnects.
type Participant struct {
	SessionID   string         `json:"sessionID"`
	UserID      uint32         `json:"userID"`
	Username    string         `json:"username"`
	Level       uint32         `json:"level"`
	LastInputAt uint64         `json:"lastInputAt"`
	ConnectedAt uint64         `json:"connectedAt"`
	Disabled    bool           `json:"disabled"`
	GroupID     string         `json:"groupID"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// Group is a named set of participants sharing a scene.
type Group struct {
	GroupID string         `json:"groupID"`
	SceneID string         `json:"sceneID,omitempty"`
	Etag    string         `json:"etag,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Scene is a named collection of controls.
type Scene struct {
	SceneID  string         `json:"sceneID"`
	Controls []Control      `json:"controls,omitempty"`
	Etag     string         `json:"etag,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// Control is one interactive element on a scene. SceneID names the parent
// scene; it is routing information for batched writes and never appears in
// the control object on the wire.
type Control struct {
	ControlID string            `json:"controlID"`
	SceneID   string            `json:"-"`
	Kind      string            `json:"kind,omitempty"`
	Disabled  bool              `json:"disabled,omitempty"`
	Position  []ControlPosition `json:"position,omitempty"`
	Text      string            `json:"text,omitempty"`
	Cost      uint32            `json:"cost,omitempty"`
	Progress  float64           `json:"progress,omitempty"`
	Cooldown  uint64            `json:"cooldown,omitempty"`
	KeyCode   int               `json:"keyCode,omitempty"`
	Etag      string            `json:"etag,omitempty"`
	Meta      map[string]any    `json:"meta,omitempty"`
}

// ControlPosition places a control on one of the service's layout grids.
type ControlPosition struct {
	Size   string `json:"size"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

// MemoryStats reports the service-side memory accounting for this session.
type MemoryStats struct {
	UsedBytes  uint64              `json:"usedBytes"`
	TotalBytes uint64              `json:"totalBytes"`
	Resources  jsoniter.RawMessage `json:"resources,omitempty"`
}

// ThrottleRule configures the leaky bucket the service applies to one method.
type ThrottleRule struct {
	Capacity  uint64 `json:"capacity"`
	DrainRate uint64 `json:"drainRate"`
}

// MethodThrottle reports the observed throttle counters for one method.
type MethodThrottle struct {
	Inserted uint64 `json:"inserted"`
	Rejected uint64 `json:"rejected"`
}

// ThrottleState maps method names to their throttle counters.
type ThrottleState map[string]MethodThrottle
