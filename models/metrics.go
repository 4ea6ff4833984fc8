package models

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	sceneIDLabel = "scene_id"
)

var (
	sceneCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scene_count",
		Help: "The number of scenes.",
	})

	sceneEntityCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scene_entity_count",
		Help: "The number of entities in a scene.",
	}, []string{sceneIDLabel})

	entityMovesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "entity_moves_total",
		Help: "The total number of entity moves.",
	})
)

func instrumentSceneCount(n int) {
	sceneCount.Set(float64(n))
}

func instrumentEntityCount(sceneID uint32, n int) {
	sceneEntityCount.
		With(prometheus.Labels{sceneIDLabel: strconv.FormatUint(uint64(sceneID), 10)}).
		Set(float64(n))
}

func instrumentEntityMove() {
	entityMovesTotal.Inc()
}
