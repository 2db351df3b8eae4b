package interactive

import (
	"log/slog"
	"sync"
)

// StateCache mirrors the authoritative scene graph by consuming the event
// stream. It never issues RPCs and never propagates failure: a delta that
// does not apply is logged and skipped, and the next full event for that
// resource rehydrates the entry.
type StateCache struct {
	logger *slog.Logger

	mu           sync.RWMutex
	scenes       map[string]Scene
	groups       map[string]Group
	controls     map[string]map[string]Control // sceneID -> controlID
	participants map[string]Participant // keyed by sessionID
}

func newStateCache(logger *slog.Logger) *StateCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateCache{
		logger:       logger,
		scenes:       make(map[string]Scene),
		groups:       make(map[string]Group),
		controls:     make(map[string]map[string]Control),
		participants: make(map[string]Participant),
	}
}

// run consumes the subscription until it is closed. The cache is mutated
// only from this goroutine.
func (c *StateCache) run(sub *Subscription) {
	go func() {
		for ev := range sub.C {
			c.apply(ev)
		}
	}()
}

func (c *StateCache) apply(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch body := ev.Body.(type) {
	case SceneCreateEvent:
		c.putScenes(body.Scenes)
	case SceneUpdateEvent:
		c.putScenes(body.Scenes)
	case SceneDeleteEvent:
		c.deleteScene(body.SceneID, body.ReassignSceneID)

	case GroupCreateEvent:
		c.putGroups(body.Groups)
	case GroupUpdateEvent:
		c.putGroups(body.Groups)
	case GroupDeleteEvent:
		c.deleteGroup(body.GroupID, body.ReassignGroupID)

	case ControlCreateEvent:
		c.putControls(body.SceneID, body.Controls)
	case ControlUpdateEvent:
		c.putControls(body.SceneID, body.Controls)
	case ControlDeleteEvent:
		scene, ok := c.controls[body.SceneID]
		if !ok {
			c.logger.Debug("interactive: cache: control delete for unknown scene",
				"sceneID", body.SceneID)
			return
		}
		for _, id := range body.ControlIDs {
			delete(scene, id)
		}

	case ParticipantJoinEvent:
		c.putParticipants(body.Participants)
	case ParticipantUpdateEvent:
		c.putParticipants(body.Participants)
	case ParticipantLeaveEvent:
		for _, p := range body.Participants {
			delete(c.participants, p.SessionID)
		}
	}
}

func (c *StateCache) putScenes(scenes []Scene) {
	for _, scene := range scenes {
		c.scenes[scene.SceneID] = scene
		controls := make(map[string]Control, len(scene.Controls))
		for _, ctrl := range scene.Controls {
			ctrl.SceneID = scene.SceneID
			controls[ctrl.ControlID] = ctrl
		}
		c.controls[scene.SceneID] = controls
	}
}

// deleteScene drops the scene and its controls, moving groups that lived on
// it to the reassignment target when that target is known to the cache.
func (c *StateCache) deleteScene(sceneID, reassignID string) {
	delete(c.scenes, sceneID)
	delete(c.controls, sceneID)

	_, haveTarget := c.scenes[reassignID]
	for id, group := range c.groups {
		if group.SceneID != sceneID {
			continue
		}
		if !haveTarget {
			c.logger.Debug("interactive: cache: reassign target not cached",
				"sceneID", reassignID)
			continue
		}
		group.SceneID = reassignID
		c.groups[id] = group
	}
}

func (c *StateCache) putGroups(groups []Group) {
	for _, group := range groups {
		c.groups[group.GroupID] = group
	}
}

// deleteGroup drops the group, moving its participants to the reassignment
// target when that target is known to the cache.
func (c *StateCache) deleteGroup(groupID, reassignID string) {
	delete(c.groups, groupID)

	_, haveTarget := c.groups[reassignID]
	for id, p := range c.participants {
		if p.GroupID != groupID {
			continue
		}
		if !haveTarget {
			c.logger.Debug("interactive: cache: reassign target not cached",
				"groupID", reassignID)
			continue
		}
		p.GroupID = reassignID
		c.participants[id] = p
	}
}

func (c *StateCache) putControls(sceneID string, controls []Control) {
	scene, ok := c.controls[sceneID]
	if !ok {
		scene = make(map[string]Control, len(controls))
		c.controls[sceneID] = scene
	}
	for _, ctrl := range controls {
		ctrl.SceneID = sceneID
		scene[ctrl.ControlID] = ctrl
	}
}

func (c *StateCache) putParticipants(participants []Participant) {
	for _, p := range participants {
		c.participants[p.SessionID] = p
	}
}

// Scene returns a cached scene by id.
func (c *StateCache) Scene(sceneID string) (Scene, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	scene, ok := c.scenes[sceneID]
	return scene, ok
}

// Scenes returns every cached scene.
func (c *StateCache) Scenes() []Scene {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Scene, 0, len(c.scenes))
	for _, scene := range c.scenes {
		out = append(out, scene)
	}
	return out
}

// Group returns a cached group by id.
func (c *StateCache) Group(groupID string) (Group, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	group, ok := c.groups[groupID]
	return group, ok
}

// Groups returns every cached group.
func (c *StateCache) Groups() []Group {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Group, 0, len(c.groups))
	for _, group := range c.groups {
		out = append(out, group)
	}
	return out
}

// Control returns a cached control by scene and id.
func (c *StateCache) Control(sceneID, controlID string) (Control, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ctrl, ok := c.controls[sceneID][controlID]
	return ctrl, ok
}

// Controls returns every cached control on one scene.
func (c *StateCache) Controls(sceneID string) []Control {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Control, 0, len(c.controls[sceneID]))
	for _, ctrl := range c.controls[sceneID] {
		out = append(out, ctrl)
	}
	return out
}

// Participant returns a cached participant by session id.
func (c *StateCache) Participant(sessionID string) (Participant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.participants[sessionID]
	return p, ok
}

// Participants returns every cached participant.
func (c *StateCache) Participants() []Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Participant, 0, len(c.participants))
	for _, p := range c.participants {
		out = append(out, p)
	}
	return out
}
