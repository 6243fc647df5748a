package services

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// shape renders a forest as "id(child,child)" using short labels.
func shape(roots []*TreeNode, labels map[uuid.UUID]string) string {
	parts := make([]string, 0, len(roots))
	for _, r := range roots {
		label := labels[r.ID]
		if label == "" {
			label = r.ID.String()[:8]
		}
		if len(r.Children) > 0 {
			label += "(" + shape(r.Children, labels) + ")"
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, ",")
}

func labelled(nodes ...Node) map[uuid.UUID]string {
	out := make(map[uuid.UUID]string, len(nodes))
	for i, n := range nodes {
		out[n.ID] = string(rune('A' + i))
	}
	return out
}

func child(parent Node, key float64) Node {
	return Node{ID: uuid.New(), ParentID: ptr(parent.ID), OrderKey: key, Kind: NodeKindFolder}
}

func root(key float64) Node {
	return Node{ID: uuid.New(), OrderKey: key, Kind: NodeKindFolder}
}

func TestBuildTree_GroupsChildrenInInputOrder(t *testing.T) {
	a := root(1)
	b := root(2)
	c := child(a, 1)
	d := child(a, 2)
	e := child(c, 1)
	labels := labelled(a, b, c, d, e)

	roots := BuildTree([]Node{a, c, b, d, e})

	require.Equal(t, "A(C(E),D),B", shape(roots, labels))
}

func TestBuildTree_Empty(t *testing.T) {
	require.Empty(t, BuildTree(nil))
	require.Empty(t, Flatten(nil))
}

func TestBuildTree_OrphansBecomeRoots(t *testing.T) {
	a := root(1)
	missing := root(0)
	orphan := child(missing, 5)
	orphanChild := child(orphan, 1)
	labels := labelled(a, orphan, orphanChild)

	roots := BuildTree([]Node{a, orphan, orphanChild})

	require.Equal(t, "A,B(C)", shape(roots, labels))
}

func TestBuildTree_StoredCycleKeepsEveryNodeOnce(t *testing.T) {
	a := root(1)
	b := root(2)
	a.ParentID = ptr(b.ID)
	b.ParentID = ptr(a.ID)
	self := root(3)
	self.ParentID = ptr(self.ID)
	labels := labelled(a, b, self)

	roots := BuildTree([]Node{a, b, self})

	require.Equal(t, "A(B),C", shape(roots, labels))
	require.Len(t, Flatten(roots), 3)
}

func TestBuildTree_IsIdempotentThroughFlatten(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		t.Run(fmt.Sprintf("round_%d", round), func(t *testing.T) {
			nodes := randomForest(rng, 1+rng.Intn(40))
			first := BuildTree(nodes)
			second := BuildTree(Flatten(first))
			require.Equal(t, shape(first, nil), shape(second, nil))
			require.Len(t, Flatten(second), len(nodes))
		})
	}
}

// randomForest builds nodes sorted by key with a mix of roots, nested
// children and orphans.
func randomForest(rng *rand.Rand, n int) []Node {
	nodes := make([]Node, 0, n)
	for i := 0; i < n; i++ {
		node := Node{ID: uuid.New(), OrderKey: float64(rng.Intn(10)), Kind: NodeKindFolder}
		switch pick := rng.Intn(10); {
		case pick < 2 || len(nodes) == 0:
		case pick == 2:
			node.ParentID = ptr(uuid.New())
		default:
			node.ParentID = ptr(nodes[rng.Intn(len(nodes))].ID)
		}
		nodes = append(nodes, node)
	}
	rng.Shuffle(len(nodes), func(i, j int) { nodes[i], nodes[j] = nodes[j], nodes[i] })
	return nodes
}

func TestFindSubtreeAndContains(t *testing.T) {
	a := root(1)
	b := child(a, 1)
	c := child(b, 1)
	d := root(2)
	roots := BuildTree([]Node{a, d, b, c})

	sub := FindSubtree(roots, b.ID)
	require.NotNil(t, sub)
	require.Equal(t, b.ID, sub.ID)
	require.True(t, sub.Contains(b.ID))
	require.True(t, sub.Contains(c.ID))
	require.False(t, sub.Contains(a.ID))
	require.False(t, sub.Contains(d.ID))
	require.Nil(t, FindSubtree(roots, uuid.New()))
}

func TestWalk_ReportsDepthAndStops(t *testing.T) {
	a := root(1)
	b := child(a, 1)
	c := child(b, 1)
	d := child(a, 2)
	roots := BuildTree([]Node{a, b, c, d})

	depths := map[uuid.UUID]int{}
	roots[0].Walk(func(n *TreeNode, depth int) bool {
		depths[n.ID] = depth
		return true
	})
	require.Equal(t, map[uuid.UUID]int{a.ID: 0, b.ID: 1, c.ID: 2, d.ID: 1}, depths)

	visited := 0
	roots[0].Walk(func(n *TreeNode, _ int) bool {
		visited++
		return n.ID != b.ID
	})
	require.Equal(t, 2, visited)
}
