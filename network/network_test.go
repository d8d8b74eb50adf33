package network_test

import (
	"context"
	"math"
	"sync"
	"testing"

	"git.fiblab.net/sim/walkability/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1 -100- 2 -200- 3 -300- 4，另有孤立点 9
func newLine(t *testing.T) *network.Network {
	nodes := []network.Node{
		{ID: 1, Kind: network.NodeKindResidential},
		{ID: 2},
		{ID: 3, Kind: network.NodeKindCandidate},
		{ID: 4, Kind: network.NodeKindAmenity},
		{ID: 9, Kind: network.NodeKindResidential},
	}
	edges := []network.Edge{
		{From: 1, To: 2, Length: 100},
		{From: 2, To: 3, Length: 200},
		{From: 3, To: 4, Length: 300},
		{From: 1, To: 2, Length: 150},
	}
	n, err := network.New(nodes, edges)
	require.NoError(t, err)
	return n
}

func TestNew(t *testing.T) {
	n := newLine(t)
	assert.Equal(t, 5, n.Len())
	assert.True(t, n.Has(9))
	assert.False(t, n.Has(7))
	assert.Equal(t, []int64{1, 9}, n.NodesOf(network.NodeKindResidential))
	node, ok := n.Node(3)
	assert.True(t, ok)
	assert.Equal(t, network.NodeKindCandidate, node.Kind)

	_, err := network.New([]network.Node{{ID: 1}, {ID: 1}}, nil)
	assert.ErrorIs(t, err, network.ErrDuplicateNode)
	_, err = network.New([]network.Node{{ID: 1}}, []network.Edge{{From: 1, To: 2, Length: 1}})
	assert.ErrorIs(t, err, network.ErrUnknownNode)
	_, err = network.New([]network.Node{{ID: 1}, {ID: 2}}, []network.Edge{{From: 1, To: 2, Length: -1}})
	assert.ErrorIs(t, err, network.ErrBadEdge)
}

func TestParseNodeKind(t *testing.T) {
	k, err := network.ParseNodeKind(" Residential ")
	assert.NoError(t, err)
	assert.Equal(t, network.NodeKindResidential, k)
	k, err = network.ParseNodeKind("")
	assert.NoError(t, err)
	assert.Equal(t, network.NodeKindNetwork, k)
	_, err = network.ParseNodeKind("park")
	assert.Error(t, err)
	assert.Equal(t, "amenity", network.NodeKindAmenity.String())
}

func TestShortestPath(t *testing.T) {
	n := newLine(t)
	path, cost := n.ShortestPath(1, 4)
	assert.Equal(t, []int64{1, 2, 3, 4}, path)
	assert.Equal(t, 600.0, cost)

	path, cost = n.ShortestPath(1, 9)
	assert.Nil(t, path)
	assert.True(t, math.IsInf(cost, 1))

	// 无向边，反向路径相同
	path, cost = n.ShortestPath(4, 1)
	assert.Equal(t, []int64{4, 3, 2, 1}, path)
	assert.Equal(t, 600.0, cost)
}

func TestDistanceCache(t *testing.T) {
	n := newLine(t)
	c := network.NewDistanceCache(n)
	assert.Equal(t, 0, c.Sources())

	assert.Equal(t, 600.0, c.Distance(1, 4))
	assert.Equal(t, 1, c.Sources())
	// 对称，命中1的缓存
	assert.Equal(t, 600.0, c.Distance(4, 1))
	assert.Equal(t, 1, c.Sources())
	assert.Equal(t, 0.0, c.Distance(3, 3))
	assert.True(t, math.IsInf(c.Distance(1, 9), 1))
	assert.True(t, math.IsInf(c.Distance(1, 42), 1))
	assert.True(t, math.IsInf(c.Distance(42, 1), 1))

	c.Release()
	assert.Equal(t, 0, c.Sources())
}

func TestPrecompute(t *testing.T) {
	n := newLine(t)
	c := network.NewDistanceCache(n)
	require.NoError(t, c.Precompute(context.Background(), []int64{1, 2, 3, 4, 9}, 2))
	assert.Equal(t, 5, c.Sources())
	assert.Equal(t, 300.0, c.Distance(1, 3))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Release()
	assert.ErrorIs(t, c.Precompute(ctx, []int64{1, 2}, 0), context.Canceled)
}

func TestTreeConcurrent(t *testing.T) {
	n := newLine(t)
	c := network.NewDistanceCache(n)
	trees := make([][]float64, 16)
	var wg sync.WaitGroup
	for i := range trees {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// 一半goroutine查询同一个源
			trees[i] = c.Tree(int64(1 + 3*(i%2)))
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, c.Sources())
	for i, tree := range trees {
		// 同一源的所有调用拿到同一棵树
		assert.Same(t, &c.Tree(int64(1 + 3*(i%2)))[0], &tree[0])
	}
	assert.Equal(t, 600.0, trees[0][3])
	assert.Equal(t, 600.0, trees[1][0])
}

func TestKNearest(t *testing.T) {
	n := newLine(t)
	c := network.NewDistanceCache(n)
	got := c.KNearest(2, []int64{4, 1, 3, 9}, 2)
	assert.Equal(t, []network.Neighbor{{ID: 1, Distance: 100}, {ID: 3, Distance: 200}}, got)

	// 不可达的点被排除
	got = c.KNearest(2, []int64{4, 1, 3, 9}, 10)
	assert.Len(t, got, 3)
	assert.Equal(t, int64(4), got[2].ID)

	assert.Nil(t, c.KNearest(2, []int64{1}, 0))
	assert.Empty(t, c.KNearest(9, []int64{1, 3}, 2))
}

func TestKNearestTieBreak(t *testing.T) {
	nodes := []network.Node{{ID: 1}, {ID: 5}, {ID: 3}}
	edges := []network.Edge{{From: 1, To: 5, Length: 10}, {From: 1, To: 3, Length: 10}}
	n, err := network.New(nodes, edges)
	require.NoError(t, err)
	c := network.NewDistanceCache(n)
	got := c.KNearest(1, []int64{5, 3}, 2)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, int64(5), got[1].ID)
}
