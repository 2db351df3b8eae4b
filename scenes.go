package interactive

import "context"

// SceneService manages the scenes of the scene graph. Batched writes are
// transactional at the service: either every scene in the call is applied or
// none is.
type SceneService struct {
	c *Client
}

type scenesPayload struct {
	Scenes []Scene `json:"scenes"`
}

// Create adds scenes in one transactional call and returns them as the
// service created them.
func (s *SceneService) Create(ctx context.Context, scenes ...Scene) ([]Scene, error) {
	var rep scenesPayload
	if err := s.c.call(ctx, methodCreateScenes, scenesPayload{Scenes: scenes}, &rep); err != nil {
		return nil, err
	}
	return rep.Scenes, nil
}

// List returns every scene the service knows, controls included.
func (s *SceneService) List(ctx context.Context) ([]Scene, error) {
	var rep scenesPayload
	if err := s.c.call(ctx, methodGetScenes, nil, &rep); err != nil {
		return nil, err
	}
	return rep.Scenes, nil
}

// Update replaces scenes by id in one transactional call.
func (s *SceneService) Update(ctx context.Context, scenes ...Scene) ([]Scene, error) {
	var rep scenesPayload
	if err := s.c.call(ctx, methodUpdateScenes, scenesPayload{Scenes: scenes}, &rep); err != nil {
		return nil, err
	}
	return rep.Scenes, nil
}

// Delete removes a scene and moves the groups on it to reassignID. An empty
// reassignID moves them to the default scene.
func (s *SceneService) Delete(ctx context.Context, sceneID, reassignID string) error {
	if reassignID == "" {
		reassignID = DefaultReassignTarget
	}
	params := struct {
		SceneID         string `json:"sceneID"`
		ReassignSceneID string `json:"reassignSceneID"`
	}{SceneID: sceneID, ReassignSceneID: reassignID}
	return s.c.call(ctx, methodDeleteScene, params, nil)
}
