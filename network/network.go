package network

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"git.fiblab.net/sim/walkability/network/algo"
)

var (
	ErrDuplicateNode = errors.New("duplicate node id")
	ErrUnknownNode   = errors.New("unknown node id")
	ErrBadEdge       = errors.New("invalid edge length")
)

// Network is the immutable pedestrian graph. Node ids are mapped onto dense
// indices of the underlying search graph.
type Network struct {
	graph *algo.SearchGraph[algo.WalkNodeAttr, algo.WalkEdgeAttr]
	nodes []Node
	index map[int64]int
}

func New(nodes []Node, edges []Edge) (*Network, error) {
	n := &Network{
		graph: algo.NewSearchGraph[algo.WalkNodeAttr, algo.WalkEdgeAttr](),
		nodes: make([]Node, 0, len(nodes)),
		index: make(map[int64]int, len(nodes)),
	}
	for _, node := range nodes {
		if _, ok := n.index[node.ID]; ok {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateNode, node.ID)
		}
		n.index[node.ID] = n.graph.InitNode(algo.WalkNodeAttr{ID: node.ID})
		n.nodes = append(n.nodes, node)
	}
	for _, e := range edges {
		u, ok := n.index[e.From]
		if !ok {
			return nil, fmt.Errorf("%w: edge from %d", ErrUnknownNode, e.From)
		}
		v, ok := n.index[e.To]
		if !ok {
			return nil, fmt.Errorf("%w: edge to %d", ErrUnknownNode, e.To)
		}
		if e.Length < 0 || math.IsNaN(e.Length) || math.IsInf(e.Length, 0) {
			return nil, fmt.Errorf("%w: (%d,%d) length=%v", ErrBadEdge, e.From, e.To, e.Length)
		}
		n.graph.InitUndirectedEdge(u, v, e.Length, algo.WalkEdgeAttr{From: e.From, To: e.To})
	}
	log.Debugf("network built with %d nodes and %d edges", len(nodes), len(edges))
	return n, nil
}

func (n *Network) Len() int {
	return len(n.nodes)
}

func (n *Network) Has(id int64) bool {
	_, ok := n.index[id]
	return ok
}

func (n *Network) Node(id int64) (Node, bool) {
	i, ok := n.index[id]
	if !ok {
		return Node{}, false
	}
	return n.nodes[i], true
}

// NodesOf returns the ids of all nodes of the given kind in ascending order.
func (n *Network) NodesOf(kind NodeKind) []int64 {
	ids := make([]int64, 0)
	for _, node := range n.nodes {
		if node.Kind == kind {
			ids = append(ids, node.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ShortestPath returns the node ids along a shortest path and its length.
// Unreachable pairs give a nil path and +Inf.
func (n *Network) ShortestPath(from, to int64) ([]int64, float64) {
	u, ok1 := n.index[from]
	v, ok2 := n.index[to]
	if !ok1 || !ok2 {
		return nil, math.Inf(0)
	}
	items, cost := n.graph.ShortestPath(u, v)
	if items == nil {
		return nil, cost
	}
	path := make([]int64, len(items))
	for i, item := range items {
		path[i] = item.NodeAttr.ID
	}
	return path, cost
}

func (n *Network) tree(id int64) []float64 {
	i, ok := n.index[id]
	if !ok {
		return nil
	}
	return n.graph.ShortestPathTree(i)
}
