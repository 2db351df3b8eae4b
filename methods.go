package interactive

// Client-to-server method names.
const (
	methodReady                 = "ready"
	methodSetCompression        = "setCompression"
	methodGetTime               = "getTime"
	methodGetMemoryStats        = "getMemoryStats"
	methodGetThrottleState      = "getThrottleState"
	methodSetBandwidthThrottle  = "setBandwidthThrottle"
	methodGetAllParticipants    = "getAllParticipants"
	methodGetActiveParticipants = "getActiveParticipants"
	methodUpdateParticipants    = "updateParticipants"
	methodCreateGroups          = "createGroups"
	methodGetGroups             = "getGroups"
	methodUpdateGroups          = "updateGroups"
	methodDeleteGroup           = "deleteGroup"
	methodCreateScenes          = "createScenes"
	methodGetScenes             = "getScenes"
	methodUpdateScenes          = "updateScenes"
	methodDeleteScene           = "deleteScene"
	methodCreateControls        = "createControls"
	methodUpdateControls        = "updateControls"
	methodDeleteControls        = "deleteControls"
	methodCapture               = "capture"
)

// Server-to-client method names.
const (
	eventHello             = "hello"
	eventOnReady           = "onReady"
	eventSetCompression    = "setCompression"
	eventMemoryWarning     = "issueMemoryWarning"
	eventParticipantJoin   = "onParticipantJoin"
	eventParticipantLeave  = "onParticipantLeave"
	eventParticipantUpdate = "onParticipantUpdate"
	eventGroupCreate       = "onGroupCreate"
	eventGroupDelete       = "onGroupDelete"
	eventGroupUpdate       = "onGroupUpdate"
	eventSceneCreate       = "onSceneCreate"
	eventSceneDelete       = "onSceneDelete"
	eventSceneUpdate       = "onSceneUpdate"
	eventControlCreate     = "onControlCreate"
	eventControlDelete     = "onControlDelete"
	eventControlUpdate     = "onControlUpdate"
	eventGiveInput         = "giveInput"
)

// DefaultReassignTarget is the group or scene that members of a deleted
// group or scene are moved to when no explicit target is given.
const DefaultReassignTarget = "default"
