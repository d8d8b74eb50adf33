package network

import (
	"context"
	"math"
	"runtime"
	"sort"
	"time"

	"git.fiblab.net/sim/walkability/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

// DistanceCache answers shortest-path distance queries over a Network.
// Every source is expanded once into a full shortest path tree; trees are
// written once and shared read-only afterwards.
type DistanceCache struct {
	net   *Network
	trees *xsync.MapOf[int64, []float64]
}

func NewDistanceCache(net *Network) *DistanceCache {
	return &DistanceCache{
		net:   net,
		trees: xsync.NewMapOf[int64, []float64](),
	}
}

func (c *DistanceCache) Network() *Network {
	return c.net
}

// Precompute expands the given sources in parallel with at most workers
// concurrent traversals (workers <= 0 means one per CPU).
func (c *DistanceCache) Precompute(ctx context.Context, sources []int64, workers int) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, source := range sources {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c.Tree(source)
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return err
	}
	log.Debugf("precomputed %d distance trees in %v with %d workers", len(sources), time.Since(start), workers)
	return nil
}

// Tree returns the distances from source to every network node, indexed by
// the network's internal node index. Unknown sources give nil.
func (c *DistanceCache) Tree(source int64) []float64 {
	if tree, ok := c.trees.Load(source); ok {
		return tree
	}
	// 在map锁外计算，并发的同一源只保留先写入的结果
	metrics.DistanceTrees.Inc()
	tree, _ := c.trees.LoadOrStore(source, c.net.tree(source))
	return tree
}

// Distance returns the shortest path length between u and v, or +Inf when
// the pair is disconnected or either node is unknown.
func (c *DistanceCache) Distance(u, v int64) float64 {
	ui, ok := c.net.index[u]
	if !ok {
		return math.Inf(0)
	}
	vi, ok := c.net.index[v]
	if !ok {
		return math.Inf(0)
	}
	if t, ok := c.trees.Load(u); ok {
		return t[vi]
	}
	// 无向图，反向查询等价
	if t, ok := c.trees.Load(v); ok {
		return t[ui]
	}
	return c.Tree(u)[vi]
}

// KNearest returns the k members of set closest to source in ascending
// distance, ties broken by node id. Unreachable members are left out.
func (c *DistanceCache) KNearest(source int64, set []int64, k int) []Neighbor {
	if k <= 0 || len(set) == 0 {
		return nil
	}
	out := make([]Neighbor, 0, len(set))
	for _, id := range set {
		d := c.Distance(source, id)
		if math.IsInf(d, 1) {
			continue
		}
		out = append(out, Neighbor{ID: id, Distance: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance == out[j].Distance {
			return out[i].ID < out[j].ID
		}
		return out[i].Distance < out[j].Distance
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// Sources reports how many trees are cached.
func (c *DistanceCache) Sources() int {
	return c.trees.Size()
}

// Release drops every cached tree.
func (c *DistanceCache) Release() {
	c.trees.Clear()
}

func (c *DistanceCache) Has(id int64) bool {
	return c.net.Has(id)
}
