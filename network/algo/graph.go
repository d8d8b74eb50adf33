package algo

import (
	"container/heap"
	"log"
	"math"

	"github.com/samber/lo"
)

type node[T any] struct {
	attr T
}

type edge[T any] struct {
	length float64
	attr   T
}

// SearchGraph is built once with InitNode/InitEdge and only read afterwards,
// so searches may run concurrently without locking.
type SearchGraph[NT any, ET any] struct {
	// 邻接表，in node -> out node -> edge
	edges []map[int]edge[ET]
	// 点的属性
	nodes []node[NT]
}

func NewSearchGraph[NT any, ET any]() *SearchGraph[NT, ET] {
	return &SearchGraph[NT, ET]{
		edges: make([]map[int]edge[ET], 0),
		nodes: make([]node[NT], 0),
	}
}

func (g *SearchGraph[NT, ET]) InitNode(attr NT) int {
	g.nodes = append(g.nodes, node[NT]{attr: attr})
	g.edges = append(g.edges, make(map[int]edge[ET]))
	return len(g.nodes) - 1
}

func (g *SearchGraph[NT, ET]) InitEdge(from, to int, length float64, attr ET) {
	if from >= len(g.edges) || to >= len(g.edges) {
		log.Panicf("edge (%d,%d) out of range, len(g.edges)=%d", from, to, len(g.edges))
	}
	if length < 0 {
		log.Panicf("edge (%d,%d) with negative length %v", from, to, length)
	}
	// 平行边只保留最短的一条
	if e, ok := g.edges[from][to]; ok && e.length <= length {
		return
	}
	g.edges[from][to] = edge[ET]{
		length: length,
		attr:   attr,
	}
}

// 无向边，两个方向使用相同的长度与属性
func (g *SearchGraph[NT, ET]) InitUndirectedEdge(u, v int, length float64, attr ET) {
	g.InitEdge(u, v, length, attr)
	g.InitEdge(v, u, length, attr)
}

func (g *SearchGraph[NT, ET]) Len() int {
	return len(g.nodes)
}

type PathItem[NT any, ET any] struct {
	NodeAttr NT
	EdgeAttr ET
}

func (g *SearchGraph[NT, ET]) reconstructPath(cameFrom map[int]int, curNode int) []PathItem[NT, ET] {
	pathBeforeReversed := []PathItem[NT, ET]{{NodeAttr: g.nodes[curNode].attr}}
	for {
		if from, ok := cameFrom[curNode]; ok {
			attr := g.edges[from][curNode].attr
			curNode = from
			pathBeforeReversed = append(pathBeforeReversed, PathItem[NT, ET]{
				NodeAttr: g.nodes[curNode].attr,
				EdgeAttr: attr,
			})
		} else {
			break
		}
	}
	return lo.Reverse(pathBeforeReversed)
}

// Dijkstra单源最短路，返回start到所有点的距离，不可达为正无穷
func (g *SearchGraph[NT, ET]) ShortestPathTree(start int) []float64 {
	dist := make([]float64, len(g.nodes))
	for i := range dist {
		dist[i] = math.Inf(0)
	}
	if start < 0 || start >= len(g.nodes) {
		return dist
	}
	dist[start] = 0
	openSet := make(PriorityQueue, 1)
	openSetMap := make(map[int]*Item, 1) // openSet value -> openSet item
	openSet[0] = &Item{Value: start, Priority: 0, Index: 0}
	openSetMap[start] = openSet[0]
	closed := make([]bool, len(g.nodes))
	heap.Init(&openSet)
	for openSet.Len() > 0 {
		cur := heap.Pop(&openSet).(*Item).Value
		delete(openSetMap, cur)
		closed[cur] = true
		for neighbor, e := range g.edges[cur] {
			if closed[neighbor] {
				continue
			}
			tentative := dist[cur] + e.length
			if tentative >= dist[neighbor] {
				continue
			}
			dist[neighbor] = tentative
			if item, ok := openSetMap[neighbor]; ok {
				// 已经访问过的节点，修改其在heap中的优先级
				item.Priority = tentative
				heap.Fix(&openSet, item.Index)
			} else {
				// 新访问的节点
				item := &Item{Value: neighbor, Priority: tentative}
				heap.Push(&openSet, item)
				openSetMap[neighbor] = item
			}
		}
	}
	return dist
}

// Dijkstra点到点最短路，到达终点即停止
func (g *SearchGraph[NT, ET]) ShortestPath(start, end int) ([]PathItem[NT, ET], float64) {
	if start == end {
		return []PathItem[NT, ET]{{NodeAttr: g.nodes[start].attr}}, 0
	}
	openSet := make(PriorityQueue, 1)
	openSetMap := make(map[int]*Item, 1)
	cameFrom := make(map[int]int, 0)
	gScore := make(map[int]float64, 0)
	gScore[start] = .0
	openSet[0] = &Item{Value: start, Priority: 0, Index: 0}
	openSetMap[start] = openSet[0]
	heap.Init(&openSet)
	for openSet.Len() > 0 {
		cur := heap.Pop(&openSet).(*Item).Value
		delete(openSetMap, cur)
		if cur == end {
			return g.reconstructPath(cameFrom, cur), gScore[cur]
		}
		for neighbor, e := range g.edges[cur] {
			gScoreTentative := gScore[cur] + e.length
			gScoreNeighbor, ok := gScore[neighbor]
			if !ok {
				gScoreNeighbor = math.Inf(0)
			}
			if gScoreTentative < gScoreNeighbor {
				cameFrom[neighbor] = cur
				gScore[neighbor] = gScoreTentative
				if item, ok := openSetMap[neighbor]; ok {
					item.Priority = gScoreTentative
					heap.Fix(&openSet, item.Index)
				} else {
					item := &Item{Value: neighbor, Priority: gScoreTentative}
					heap.Push(&openSet, item)
					openSetMap[neighbor] = item
				}
			}
		}
	}
	return nil, math.Inf(0)
}
