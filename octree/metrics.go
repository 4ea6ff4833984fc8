package octree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	octreeGrowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octree_grows_total",
		Help: "The number of times an octree root was doubled.",
	})

	octreeShrinksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octree_shrinks_total",
		Help: "The number of times an octree root was reduced.",
	})

	octreeSplitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octree_splits_total",
		Help: "The number of octree node splits.",
	})

	octreeMergesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octree_merges_total",
		Help: "The number of octree node merges.",
	})

	octreeAddFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octree_add_failures_total",
		Help: "The number of objects rejected because they did not fit after growing.",
	})
)

func instrumentGrow() {
	octreeGrowsTotal.Inc()
}

func instrumentShrink() {
	octreeShrinksTotal.Inc()
}

func instrumentSplit() {
	octreeSplitsTotal.Inc()
}

func instrumentMerge() {
	octreeMergesTotal.Inc()
}

func instrumentAddFailure() {
	octreeAddFailuresTotal.Inc()
}
