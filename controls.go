package interactive

import "context"

// DefaultUpdatePriority orders concurrent control updates at the service
// when the caller does not care.
const DefaultUpdatePriority = 0

// BatchFuture is the single-shot completion of one per-scene batch call.
// Every control in the same scene batch shares one future, mirroring the
// service's all-or-nothing contract for that scene.
type BatchFuture struct {
	done chan struct{}
	err  error
}

func newBatchFuture() *BatchFuture {
	return &BatchFuture{done: make(chan struct{})}
}

func (f *BatchFuture) complete(err error) {
	f.err = err
	close(f.done)
}

// Done is closed once the batch call has resolved.
func (f *BatchFuture) Done() <-chan struct{} { return f.done }

// Err reports the batch outcome. It must only be called after Done is
// closed.
func (f *BatchFuture) Err() error { return f.err }

// Wait blocks until the batch resolves or ctx is done.
func (f *BatchFuture) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitAll blocks until every future in a batched-write result has resolved
// and returns the first failure, if any.
func WaitAll(ctx context.Context, futures map[string]*BatchFuture) error {
	var firstErr error
	seen := make(map[*BatchFuture]struct{})
	for _, f := range futures {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		if err := f.Wait(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ControlService manages the controls on the scene graph's scenes. Writes
// accept a flat set of controls spanning scenes; the service transacts per
// scene, so the set is grouped by parent scene and one call is issued per
// scene. Each returned map entry resolves when its scene's call does.
type ControlService struct {
	c *Client
}

type createControlsParams struct {
	SceneID  string    `json:"sceneID"`
	Controls []Control `json:"controls"`
}

type updateControlsParams struct {
	SceneID  string    `json:"sceneID"`
	Controls []Control `json:"controls"`
	Priority int       `json:"priority"`
}

type deleteControlsParams struct {
	SceneID    string   `json:"sceneID"`
	ControlIDs []string `json:"controlIDs"`
}

// Create adds controls to their parent scenes. The result maps each control
// id to the future of its scene's call.
func (s *ControlService) Create(ctx context.Context, controls []Control) map[string]*BatchFuture {
	return s.perScene(ctx, controls, func(sceneID string, batch []Control) (string, any) {
		return methodCreateControls, createControlsParams{SceneID: sceneID, Controls: batch}
	})
}

// Update replaces controls by id on their parent scenes. Priority orders
// concurrent updates at the service; pass DefaultUpdatePriority when
// ordering does not matter.
func (s *ControlService) Update(ctx context.Context, controls []Control, priority int) map[string]*BatchFuture {
	return s.perScene(ctx, controls, func(sceneID string, batch []Control) (string, any) {
		return methodUpdateControls, updateControlsParams{SceneID: sceneID, Controls: batch, Priority: priority}
	})
}

// Delete removes controls from their parent scenes.
func (s *ControlService) Delete(ctx context.Context, controls []Control) map[string]*BatchFuture {
	return s.perScene(ctx, controls, func(sceneID string, batch []Control) (string, any) {
		ids := make([]string, len(batch))
		for i, ctrl := range batch {
			ids[i] = ctrl.ControlID
		}
		return methodDeleteControls, deleteControlsParams{SceneID: sceneID, ControlIDs: ids}
	})
}

func (s *ControlService) perScene(ctx context.Context, controls []Control, build func(sceneID string, batch []Control) (string, any)) map[string]*BatchFuture {
	byScene := make(map[string][]Control)
	order := make([]string, 0)
	for _, ctrl := range controls {
		sceneID := ctrl.SceneID
		if sceneID == "" {
			sceneID = DefaultReassignTarget
		}
		if _, ok := byScene[sceneID]; !ok {
			order = append(order, sceneID)
		}
		byScene[sceneID] = append(byScene[sceneID], ctrl)
	}

	futures := make(map[string]*BatchFuture, len(controls))
	for _, sceneID := range order {
		batch := byScene[sceneID]
		fut := newBatchFuture()
		for _, ctrl := range batch {
			futures[ctrl.ControlID] = fut
		}

		method, params := build(sceneID, batch)
		go func() {
			fut.complete(s.c.call(ctx, method, params, nil))
		}()
	}
	return futures
}
