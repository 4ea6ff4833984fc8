package http

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	sceneIDLabel = "scene_id"
)

var (
	streamConnectedClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stream_connected_clients",
		Help: "The number of clients connected to a scene debug stream.",
	}, []string{sceneIDLabel})

	streamSentMsgs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_sent_msgs",
		Help: "The number of octree messages sent to debug streams.",
	}, []string{sceneIDLabel})

	streamSentBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_sent_bytes",
		Help: "The number of bytes sent to debug streams.",
	}, []string{sceneIDLabel})

	streamSendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_send_errors",
		Help: "The errors that occured while sending a debug stream message.",
	}, []string{sceneIDLabel})
)

func sceneLabels(sceneID uint32) prometheus.Labels {
	return prometheus.Labels{sceneIDLabel: strconv.FormatUint(uint64(sceneID), 10)}
}

func instrumentStreamConnect(sceneID uint32) {
	streamConnectedClients.With(sceneLabels(sceneID)).Inc()
}

func instrumentStreamDisconnect(sceneID uint32) {
	streamConnectedClients.With(sceneLabels(sceneID)).Dec()
}

func instrumentStreamSend(sceneID uint32, size int, err error) {
	if err != nil {
		streamSendErrors.With(sceneLabels(sceneID)).Inc()
		return
	}

	streamSentMsgs.With(sceneLabels(sceneID)).Inc()
	streamSentBytes.With(sceneLabels(sceneID)).Add(float64(size))
}
