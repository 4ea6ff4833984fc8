package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aukilabs/octree/featureflag"
	"github.com/aukilabs/octree/models"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func newTestSceneServer(t *testing.T, flags ...string) (*httptest.Server, *models.Scene) {
	scenes := &models.SceneStore{
		FrameDuration: time.Second,
		IndexConfig: models.IndexConfig{
			InitialSize: 20,
			MinNodeSize: 1,
			Looseness:   1.25,
		},
	}

	scene := scenes.New()
	_, err := scene.AddEntity(models.NewPose(mgl32.Vec3{0, 0, 0}), mgl32.Vec3{1, 1, 1})
	require.NoError(t, err)
	_, err = scene.AddEntity(models.NewPose(mgl32.Vec3{5, 0, 0}), mgl32.Vec3{1, 1, 1})
	require.NoError(t, err)

	var mux http.ServeMux
	h := SceneHandler{
		Scenes:         scenes,
		StreamInterval: time.Millisecond * 10,
		FeatureFlags:   featureflag.New(flags),
	}
	h.Register(&mux)

	server := httptest.NewServer(&mux)
	t.Cleanup(func() {
		server.Close()
		scenes.Remove(scene)
	})
	return server, scene
}

func get(t *testing.T, url string, v any) int {
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	if res.StatusCode == http.StatusOK && v != nil {
		require.NoError(t, json.Unmarshal(body, v))
	}
	return res.StatusCode
}

func TestSceneHandlerScenes(t *testing.T) {
	server, scene := newTestSceneServer(t)

	var ids []uint32
	require.Equal(t, http.StatusOK, get(t, server.URL+"/scenes", &ids))
	require.Equal(t, []uint32{scene.ID}, ids)
}

func TestSceneHandlerOctree(t *testing.T) {
	server, scene := newTestSceneServer(t)

	t.Run("octree is returned", func(t *testing.T) {
		var res OctreeResponse
		require.Equal(t, http.StatusOK, get(t, server.URL+"/scenes/1/octree", &res))
		require.Equal(t, scene.ID, res.SceneID)
		require.Equal(t, scene.SceneUUID, res.SceneUUID)
		require.Equal(t, 2, res.Info.Count)
		require.Equal(t, float32(20), res.Info.BaseLength)
		require.Len(t, res.Nodes, 1)
		require.Equal(t, res.Info.MaxBounds, res.Nodes[0])
	})

	t.Run("scene not found", func(t *testing.T) {
		require.Equal(t, http.StatusNotFound, get(t, server.URL+"/scenes/2/octree", nil))
	})

	t.Run("invalid scene id", func(t *testing.T) {
		require.Equal(t, http.StatusBadRequest, get(t, server.URL+"/scenes/abc/octree", nil))
	})

	t.Run("method not allowed", func(t *testing.T) {
		res, err := http.Post(server.URL+"/scenes/1/octree", "application/json", nil)
		require.NoError(t, err)
		res.Body.Close()
		require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
	})
}

func TestSceneHandlerEntities(t *testing.T) {
	server, _ := newTestSceneServer(t)

	var res EntitiesResponse
	require.Equal(t, http.StatusOK, get(t, server.URL+"/scenes/1/entities", &res))
	require.Equal(t, []uint32{1, 2}, res.IDs)
	require.Len(t, res.Entities, 2)
	require.Equal(t, mgl32.Vec3{5, 0, 0}, res.Entities[1].Pose.Position)
	require.Equal(t, mgl32.Vec3{4, -1, -1}, res.Entities[1].Bounds.Min)
}

func TestSceneHandlerColliding(t *testing.T) {
	server, _ := newTestSceneServer(t)

	tests := []struct {
		name       string
		query      string
		statusCode int
		ids        []uint32
	}{
		{
			name:       "one entity",
			query:      "min=-1,-1,-1&max=1,1,1",
			statusCode: http.StatusOK,
			ids:        []uint32{1},
		},
		{
			name:       "two entities",
			query:      "min=-1,-1,-1&max=4.5,1,1",
			statusCode: http.StatusOK,
			ids:        []uint32{1, 2},
		},
		{
			name:       "no entity",
			query:      "min=-9,-9,-9&max=-8,-8,-8",
			statusCode: http.StatusOK,
			ids:        []uint32{},
		},
		{
			name:       "missing max",
			query:      "min=-1,-1,-1",
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "missing component",
			query:      "min=-1,-1&max=1,1,1",
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "not a number",
			query:      "min=-1,-1,-1&max=1,a,1",
			statusCode: http.StatusBadRequest,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var res EntitiesResponse
			require.Equal(t, test.statusCode, get(t, server.URL+"/scenes/1/colliding?"+test.query, &res))
			if test.statusCode == http.StatusOK {
				require.Equal(t, test.ids, res.IDs)
			}
		})
	}
}

func TestSceneHandlerRaycast(t *testing.T) {
	server, _ := newTestSceneServer(t)

	tests := []struct {
		name       string
		query      string
		statusCode int
		ids        []uint32
	}{
		{
			name:       "all hits",
			query:      "origin=-10,0,0&direction=1,0,0&distance=100",
			statusCode: http.StatusOK,
			ids:        []uint32{1, 2},
		},
		{
			name:       "short ray",
			query:      "origin=-10,0,0&direction=1,0,0&distance=12",
			statusCode: http.StatusOK,
			ids:        []uint32{1},
		},
		{
			name:       "zero direction",
			query:      "origin=-10,0,0&direction=0,0,0&distance=100",
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "missing distance",
			query:      "origin=-10,0,0&direction=1,0,0",
			statusCode: http.StatusBadRequest,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var res EntitiesResponse
			require.Equal(t, test.statusCode, get(t, server.URL+"/scenes/1/raycast?"+test.query, &res))
			if test.statusCode == http.StatusOK {
				require.Equal(t, test.ids, res.IDs)
			}
		})
	}
}

func TestSceneHandlerStream(t *testing.T) {
	server, scene := newTestSceneServer(t)

	conn, err := websocket.Dial(
		strings.ReplaceAll(server.URL, "http://", "ws://")+"/scenes/1/stream",
		"",
		"http://localhost",
	)
	require.NoError(t, err)
	defer conn.Close()

	var msg string
	require.NoError(t, websocket.Message.Receive(conn, &msg))

	var res OctreeResponse
	require.NoError(t, json.Unmarshal([]byte(msg), &res))
	require.Equal(t, scene.ID, res.SceneID)
	require.Equal(t, 2, res.Info.Count)

	_, err = scene.AddEntity(models.NewPose(mgl32.Vec3{-5, 0, 0}), mgl32.Vec3{1, 1, 1})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		if err := websocket.Message.Receive(conn, &msg); err != nil {
			return false
		}
		res = OctreeResponse{}
		return json.Unmarshal([]byte(msg), &res) == nil && res.Info.Count == 3
	}, time.Second, time.Millisecond)
}

func TestSceneHandlerFeatureFlags(t *testing.T) {
	t.Run("query endpoints disabled", func(t *testing.T) {
		server, _ := newTestSceneServer(t, string(featureflag.FlagDisableQueryEndpoints))

		require.Equal(t, http.StatusNotFound, get(t, server.URL+"/scenes/1/colliding?min=0,0,0&max=1,1,1", nil))
		require.Equal(t, http.StatusNotFound, get(t, server.URL+"/scenes/1/entities", nil))
		require.Equal(t, http.StatusOK, get(t, server.URL+"/scenes/1/octree", nil))
	})

	t.Run("debug stream disabled", func(t *testing.T) {
		server, _ := newTestSceneServer(t, string(featureflag.FlagDisableDebugStream))

		require.Equal(t, http.StatusNotFound, get(t, server.URL+"/scenes/1/stream", nil))
	})
}
