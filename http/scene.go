package http

import (
	"cmp"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/octree/featureflag"
	"github.com/aukilabs/octree/models"
	"github.com/aukilabs/octree/octree"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/samber/lo"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeInvalidQuery  = "invalid_query"
	ErrTypeSceneNotFound = "scene_not_found"
)

// OctreeResponse describes the spatial index of a scene.
type OctreeResponse struct {
	SceneID   uint32           `json:"scene_id"`
	SceneUUID string           `json:"scene_uuid"`
	Info      octree.DebugInfo `json:"info"`
	Nodes     []octree.AABB    `json:"nodes"`
}

// EntitiesResponse lists the entities matching a query.
type EntitiesResponse struct {
	IDs      []uint32            `json:"ids"`
	Entities []models.EntityView `json:"entities,omitempty"`
}

// SceneHandler serves the scenes of a store over HTTP.
type SceneHandler struct {
	Scenes         *models.SceneStore
	StreamInterval time.Duration
	FeatureFlags   featureflag.FeatureFlag
}

// Register adds the scene routes to mux.
func (h *SceneHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /scenes", h.HandleScenes)
	mux.HandleFunc("GET /scenes/{id}/octree", h.HandleOctree)

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableQueryEndpoints, func() {
		mux.HandleFunc("GET /scenes/{id}/entities", h.HandleEntities)
		mux.HandleFunc("GET /scenes/{id}/colliding", h.HandleColliding)
		mux.HandleFunc("GET /scenes/{id}/raycast", h.HandleRaycast)
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableDebugStream, func() {
		mux.HandleFunc("GET /scenes/{id}/stream", h.HandleStream)
	})
}

func (h *SceneHandler) HandleScenes(w http.ResponseWriter, r *http.Request) {
	ids := lo.Map(h.Scenes.List(), func(s *models.Scene, _ int) uint32 {
		return s.ID
	})
	slices.Sort(ids)

	writeJSON(w, http.StatusOK, ids)
}

func (h *SceneHandler) HandleOctree(w http.ResponseWriter, r *http.Request) {
	scene, err := h.scene(r)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, OctreeResponse{
		SceneID:   scene.ID,
		SceneUUID: scene.SceneUUID,
		Info:      scene.DebugInfo(),
		Nodes:     scene.NodeBounds(),
	})
}

func (h *SceneHandler) HandleEntities(w http.ResponseWriter, r *http.Request) {
	scene, err := h.scene(r)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newEntitiesResponse(scene.Entities(), true))
}

// HandleColliding responds with the entities intersecting the box given by
// the min and max query parameters.
func (h *SceneHandler) HandleColliding(w http.ResponseWriter, r *http.Request) {
	scene, err := h.scene(r)
	if err != nil {
		writeError(w, err)
		return
	}

	query := r.URL.Query()
	minPoint, err := parseVec3(query, "min")
	if err != nil {
		writeError(w, err)
		return
	}
	maxPoint, err := parseVec3(query, "max")
	if err != nil {
		writeError(w, err)
		return
	}

	region := octree.AABB{Min: minPoint, Max: maxPoint}
	writeJSON(w, http.StatusOK, newEntitiesResponse(scene.Colliding(region), false))
}

// HandleRaycast responds with the entities hit by the ray given by the origin,
// direction and distance query parameters.
func (h *SceneHandler) HandleRaycast(w http.ResponseWriter, r *http.Request) {
	scene, err := h.scene(r)
	if err != nil {
		writeError(w, err)
		return
	}

	query := r.URL.Query()
	origin, err := parseVec3(query, "origin")
	if err != nil {
		writeError(w, err)
		return
	}
	direction, err := parseVec3(query, "direction")
	if err != nil {
		writeError(w, err)
		return
	}
	if direction.Len() == 0 {
		writeError(w, errors.New("direction is a zero vector").
			WithType(ErrTypeInvalidQuery).
			WithTag("param", "direction"))
		return
	}

	distance, err := strconv.ParseFloat(query.Get("distance"), 32)
	if err != nil {
		writeError(w, errors.New("parsing distance failed").
			WithType(ErrTypeInvalidQuery).
			WithTag("param", "distance").
			Wrap(err))
		return
	}

	hits := scene.Raycast(octree.NewRay(origin, direction), float32(distance))
	writeJSON(w, http.StatusOK, newEntitiesResponse(hits, false))
}

// HandleStream upgrades the connection to a WebSocket that receives the
// octree of the scene every stream interval.
func (h *SceneHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	scene, err := h.scene(r)
	if err != nil {
		writeError(w, err)
		return
	}

	interval := h.StreamInterval
	if interval <= 0 {
		interval = time.Second
	}

	websocket.Server{
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			instrumentStreamConnect(scene.ID)
			defer instrumentStreamDisconnect(scene.ID)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				msg, err := json.Marshal(OctreeResponse{
					SceneID:   scene.ID,
					SceneUUID: scene.SceneUUID,
					Info:      scene.DebugInfo(),
					Nodes:     scene.NodeBounds(),
				})
				if err != nil {
					logs.Warn(errors.New("encoding octree failed").Wrap(err))
					return
				}

				err = websocket.Message.Send(conn, string(msg))
				instrumentStreamSend(scene.ID, len(msg), err)
				if err != nil {
					logs.WithTag("scene_id", scene.ID).
						Debug(errors.New("sending octree failed").Wrap(err))
					return
				}

				select {
				case <-r.Context().Done():
					return
				case <-ticker.C:
				}
			}
		},
	}.ServeHTTP(w, r)
}

func (h *SceneHandler) scene(r *http.Request) (*models.Scene, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		return nil, errors.New("parsing scene id failed").
			WithType(ErrTypeInvalidQuery).
			WithTag("id", r.PathValue("id")).
			Wrap(err)
	}

	scene, ok := h.Scenes.Get(uint32(id))
	if !ok {
		return nil, errors.New("scene not found").
			WithType(ErrTypeSceneNotFound).
			WithTag("id", id)
	}
	return scene, nil
}

func newEntitiesResponse(entities []*models.Entity, withViews bool) EntitiesResponse {
	slices.SortFunc(entities, func(a, b *models.Entity) int {
		return cmp.Compare(a.ID, b.ID)
	})

	res := EntitiesResponse{
		IDs: lo.Map(entities, func(e *models.Entity, _ int) uint32 {
			return e.ID
		}),
	}
	if withViews {
		res.Entities = lo.Map(entities, func(e *models.Entity, _ int) models.EntityView {
			return e.View()
		})
	}
	return res
}

// parseVec3 parses a query parameter formatted as "x,y,z".
func parseVec3(query url.Values, param string) (mgl32.Vec3, error) {
	var v mgl32.Vec3

	values, ok := query[param]
	if !ok || len(values) == 0 {
		return v, errors.New("missing query parameter").
			WithType(ErrTypeInvalidQuery).
			WithTag("param", param)
	}

	parts := strings.Split(values[0], ",")
	if len(parts) != 3 {
		return v, errors.New("vector must have 3 components").
			WithType(ErrTypeInvalidQuery).
			WithTag("param", param).
			WithTag("value", values[0])
	}

	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return v, errors.New("parsing vector component failed").
				WithType(ErrTypeInvalidQuery).
				WithTag("param", param).
				WithTag("value", values[0]).
				Wrap(err)
		}
		v[i] = float32(f)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Warn(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.Type(err) {
	case ErrTypeInvalidQuery:
		status = http.StatusBadRequest
	case ErrTypeSceneNotFound, models.ErrTypeEntityNotFound:
		status = http.StatusNotFound
	}

	logs.WithTag("status", status).Debug(err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
