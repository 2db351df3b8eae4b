package interactive

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordedCall is one call captured by newRecordingServer, which replies null
// unless the call's sceneID is listed in fail.
type recordedCall struct {
	method string
	params map[string]any
}

func newRecordingServer(fail map[string]*ReplyError) (*fakeServer, func() []recordedCall) {
	var (
		mu    sync.Mutex
		calls []recordedCall
	)
	srv := newFakeServer(func(method string, params map[string]any) (string, *ReplyError) {
		mu.Lock()
		calls = append(calls, recordedCall{method: method, params: params})
		mu.Unlock()
		if fail != nil {
			if sceneID, ok := params["sceneID"].(string); ok {
				if replyErr, bad := fail[sceneID]; bad {
					return "", replyErr
				}
			}
		}
		return "null", nil
	})
	snapshot := func() []recordedCall {
		mu.Lock()
		defer mu.Unlock()
		out := make([]recordedCall, len(calls))
		copy(out, calls)
		return out
	}
	return srv, snapshot
}

func TestControlsCreateGroupsByScene(t *testing.T) {
	srv, calls := newRecordingServer(nil)
	c := connectedClient(t, srv)

	controls := []Control{
		{ControlID: "c1", SceneID: "main", Kind: "button"},
		{ControlID: "c2", SceneID: "main", Kind: "button"},
		{ControlID: "c3", SceneID: "lobby", Kind: "joystick"},
	}

	futures := c.Controls().Create(context.Background(), controls)
	require.NoError(t, WaitAll(context.Background(), futures))

	// One call per parent scene; controls in the same scene share a future.
	require.Len(t, futures, 3)
	assert.Same(t, futures["c1"], futures["c2"])
	assert.NotSame(t, futures["c1"], futures["c3"])

	got := calls()
	require.Len(t, got, 2)
	byScene := map[string][]any{}
	for _, call := range got {
		require.Equal(t, methodCreateControls, call.method)
		byScene[call.params["sceneID"].(string)] = call.params["controls"].([]any)
	}
	require.Len(t, byScene["main"], 2)
	require.Len(t, byScene["lobby"], 1)

	// The control objects themselves never carry the scene id.
	first := byScene["main"][0].(map[string]any)
	_, hasSceneID := first["sceneID"]
	assert.False(t, hasSceneID)
	assert.Equal(t, "c1", first["controlID"])
}

func TestControlsUpdatePriority(t *testing.T) {
	srv, calls := newRecordingServer(nil)
	c := connectedClient(t, srv)

	futures := c.Controls().Update(context.Background(), []Control{
		{ControlID: "c1", SceneID: "main", Text: "Jump"},
	}, 5)
	require.NoError(t, WaitAll(context.Background(), futures))

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, methodUpdateControls, got[0].method)
	assert.Equal(t, float64(5), got[0].params["priority"])
}

func TestControlsUpdateDefaultPriority(t *testing.T) {
	srv, calls := newRecordingServer(nil)
	c := connectedClient(t, srv)

	futures := c.Controls().Update(context.Background(), []Control{
		{ControlID: "c1", SceneID: "main"},
	}, DefaultUpdatePriority)
	require.NoError(t, WaitAll(context.Background(), futures))

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, float64(0), got[0].params["priority"])
}

func TestControlsDeleteSendsIDs(t *testing.T) {
	srv, calls := newRecordingServer(nil)
	c := connectedClient(t, srv)

	futures := c.Controls().Delete(context.Background(), []Control{
		{ControlID: "c1", SceneID: "main"},
		{ControlID: "c2", SceneID: "main"},
	})
	require.NoError(t, WaitAll(context.Background(), futures))

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, methodDeleteControls, got[0].method)
	assert.Equal(t, []any{"c1", "c2"}, got[0].params["controlIDs"])
	_, hasControls := got[0].params["controls"]
	assert.False(t, hasControls)
}

func TestControlsDefaultScene(t *testing.T) {
	srv, calls := newRecordingServer(nil)
	c := connectedClient(t, srv)

	futures := c.Controls().Create(context.Background(), []Control{{ControlID: "c1"}})
	require.NoError(t, WaitAll(context.Background(), futures))

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "default", got[0].params["sceneID"])
}

func TestControlsPerSceneAtomicity(t *testing.T) {
	// One scene's batch fails; the other's succeeds. Each future reflects
	// only its own scene's outcome.
	srv, _ := newRecordingServer(map[string]*ReplyError{
		"lobby": {Code: 4010, Message: "unknown scene"},
	})
	c := connectedClient(t, srv)

	futures := c.Controls().Create(context.Background(), []Control{
		{ControlID: "c1", SceneID: "main"},
		{ControlID: "c3", SceneID: "lobby"},
	})

	require.NoError(t, futures["c1"].Wait(context.Background()))

	err := futures["c3"].Wait(context.Background())
	var replyErr *ReplyError
	require.ErrorAs(t, err, &replyErr)
	assert.Equal(t, 4010, replyErr.Code)
}
