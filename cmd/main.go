package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/octree/featureflag"
	octreehttp "github.com/aukilabs/octree/http"
	"github.com/aukilabs/octree/models"
	"github.com/aukilabs/octree/octree"
	"github.com/aukilabs/octree/simulation"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The server version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "octree_info",
		Help:        "Octree server information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr           string           `cli:""        env:"OCTREE_ADDR"            help:"Listening address for scene queries."`
	AdminAddr      string           `cli:""        env:"OCTREE_ADMIN_ADDR"      help:"Admin listening address."`
	LogLevel       string           `cli:""        env:"OCTREE_LOG_LEVEL"       help:"Log level (debug|info|warning|error)."`
	LogIndent      bool             `cli:""        env:"OCTREE_LOG_INDENT"      help:"Indent logs."`
	FrameDuration  time.Duration    `cli:",hidden" env:"OCTREE_FRAME_DURATION"  help:"The duration of a scene frame."`
	StreamInterval time.Duration    `cli:",hidden" env:"OCTREE_STREAM_INTERVAL" help:"The duration between each octree pushed to debug streams."`
	Index          indexConfig      `cli:",hidden" env:"-"                      help:"Spatial index configuration."`
	Simulation     simulationConfig `cli:",hidden" env:"-"                      help:"Simulation configuration."`
	Events         eventsConfig     `cli:",hidden" env:"-"                      help:"Event pusher configuration."`
	FeatureFlags   []string         `cli:",hidden" env:"OCTREE_FEATURE_FLAGS"   help:"Comma separated feature flags"`
	Version        bool             `cli:""        env:"-"                      help:"Show version."`
	Help           bool             `cli:""        env:"-"                      help:"Show help."`
}

type indexConfig struct {
	InitialSize float32 `cli:",hidden" env:"OCTREE_INITIAL_SIZE"  help:"The edge length of the initial root node."`
	MinNodeSize float32 `cli:",hidden" env:"OCTREE_MIN_NODE_SIZE" help:"The edge length under which nodes are not split."`
	Looseness   float32 `cli:",hidden" env:"OCTREE_LOOSENESS"     help:"The node bounds scale factor, between 1 and 2."`
}

type simulationConfig struct {
	Entities  int     `cli:",hidden" env:"OCTREE_SIMULATION_ENTITIES"   help:"The number of simulated entities."`
	Speed     float32 `cli:",hidden" env:"OCTREE_SIMULATION_SPEED"      help:"The speed of simulated entities, in units per second."`
	ArenaSize float32 `cli:",hidden" env:"OCTREE_SIMULATION_ARENA_SIZE" help:"The edge length of the box simulated entities bounce in."`
	Seed      int64   `cli:",hidden" env:"OCTREE_SIMULATION_SEED"       help:"The random seed of the simulation."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"OCTREE_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"OCTREE_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"OCTREE_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"OCTREE_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:           ":4000",
		AdminAddr:      ":18190",
		LogLevel:       logs.InfoLevel.String(),
		FrameDuration:  time.Millisecond * 15,
		StreamInterval: time.Millisecond * 500,
		Index: indexConfig{
			InitialSize: 64,
			MinNodeSize: 1,
			Looseness:   1.25,
		},
		Simulation: simulationConfig{
			Entities:  200,
			Speed:     4,
			ArenaSize: 256,
			Seed:      time.Now().UnixNano(),
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the octree server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "octree",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	featureFlags := featureflag.New(conf.FeatureFlags)

	scenes := models.SceneStore{
		FrameDuration: conf.FrameDuration,
		IndexConfig: models.IndexConfig{
			InitialSize: conf.Index.InitialSize,
			MinNodeSize: conf.Index.MinNodeSize,
			Looseness:   conf.Index.Looseness,
		},
	}

	scene := scenes.New()
	defer scenes.Remove(scene)
	go scene.StartDispatchFrames()

	featureFlags.IfNotSet(featureflag.FlagDisableSimulation, func() {
		arena := octree.NewCube(mgl32.Vec3{}, conf.Simulation.ArenaSize)
		mover := simulation.NewMover(scene, arena, conf.Simulation.Speed, conf.Simulation.Seed)

		if _, err := mover.Spawn(conf.Simulation.Entities, mgl32.Vec3{0.5, 0.5, 0.5}); err != nil {
			logs.Fatal(errors.New("starting simulation failed").Wrap(err))
		}
		mover.Start()

		logs.WithTag("scene_id", scene.ID).
			WithTag("entities", conf.Simulation.Entities).
			WithTag("seed", conf.Simulation.Seed).
			Info("simulation started")
	})

	var service http.ServeMux
	service.Handle("/health", octreehttp.HandleWithCORS(http.HandlerFunc(octreehttp.HandleHealthCheck)))
	service.Handle("/version", octreehttp.HandleWithCORS(http.HandlerFunc(octreehttp.HandleVersion(version))))

	sceneHandler := octreehttp.SceneHandler{
		Scenes:         &scenes,
		StreamInterval: conf.StreamInterval,
		FeatureFlags:   featureFlags,
	}
	sceneHandler.Register(&service)

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	readinessCheck := func() bool {
		_, ok := scenes.Get(scene.ID)
		return ok
	}

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", octreehttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", octreehttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("addr", conf.Addr).
		WithTag("admin_addr", conf.AdminAddr).
		Info("starting octree server")

	octreehttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: octreehttp.HandleWithCORS(metrics.HTTPHandler(&service,
			octreehttp.MetricsPathFormatter))},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func validateConfig(conf config) error {
	if conf.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration)
	}

	if conf.Index.InitialSize <= 0 {
		return errors.New("initial size must be positive").
			WithTag("initial_size", conf.Index.InitialSize)
	}

	if conf.Index.MinNodeSize <= 0 {
		return errors.New("min node size must be positive").
			WithTag("min_node_size", conf.Index.MinNodeSize)
	}

	if conf.Simulation.Entities < 0 {
		return errors.New("simulated entity count can't be negative").
			WithTag("entities", conf.Simulation.Entities)
	}

	if conf.Simulation.ArenaSize <= 0 {
		return errors.New("arena size must be positive").
			WithTag("arena_size", conf.Simulation.ArenaSize)
	}

	return nil
}
