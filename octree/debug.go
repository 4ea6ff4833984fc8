package octree

// DebugInfo summarizes the shape of an octree for visualization and debug
// clients.
type DebugInfo struct {
	Count      int     `json:"count"`
	NodeCount  int     `json:"node_count"`
	LeafCount  int     `json:"leaf_count"`
	Depth      int     `json:"depth"`
	MaxCount   int     `json:"max_count"`
	BaseLength float32 `json:"base_length"`
	MinSize    float32 `json:"min_size"`
	Looseness  float32 `json:"looseness"`
	MaxBounds  AABB    `json:"max_bounds"`
}

func (o *Octree[T]) DebugInfo() DebugInfo {
	info := DebugInfo{
		Count:      o.count,
		BaseLength: o.root.baseLength,
		MinSize:    o.minSize,
		Looseness:  o.looseness,
		MaxBounds:  o.root.bounds,
	}

	o.root.walk(0, func(n *Node[T], depth int) {
		info.NodeCount++
		if n.children == nil {
			info.LeafCount++
		}
		info.Depth = max(info.Depth, depth)
		info.MaxCount = max(info.MaxCount, len(n.objects))
	})
	return info
}
