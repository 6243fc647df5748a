package services

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testTenant = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")

func TestResolveCreatePosition_EmptyRootList(t *testing.T) {
	repo := newFakeRepository()
	r := NewPositionResolver(repo)

	pos, err := r.ResolveCreatePosition(context.Background(), testTenant, nil, PositionLastChild)
	require.NoError(t, err)
	require.Nil(t, pos.ParentID)
	require.Equal(t, 0.0/2+(math.MaxFloat64-1)/2, pos.OrderKey)
}

func TestResolveCreatePosition_BelowFirstOfTwoRoots(t *testing.T) {
	repo := newFakeRepository()
	first := repo.put(NodeKindLeaf, nil, 10)
	repo.put(NodeKindLeaf, nil, 20)
	r := NewPositionResolver(repo)

	pos, err := r.ResolveCreatePosition(context.Background(), testTenant, &first.ID, PositionBelow)
	require.NoError(t, err)
	require.Nil(t, pos.ParentID)
	require.Equal(t, 15.0, pos.OrderKey)
}

func TestResolveCreatePosition_AboveFirstSibling(t *testing.T) {
	repo := newFakeRepository()
	folder := repo.put(NodeKindFolder, nil, 1)
	first := repo.put(NodeKindLeaf, &folder, 10)
	repo.put(NodeKindLeaf, &folder, 20)
	r := NewPositionResolver(repo)

	pos, err := r.ResolveCreatePosition(context.Background(), testTenant, &first.ID, PositionAbove)
	require.NoError(t, err)
	require.Equal(t, &folder.ID, pos.ParentID)
	require.Equal(t, 5.0, pos.OrderKey)
}

func TestResolveCreatePosition_LastChildOfEmptyFolder(t *testing.T) {
	repo := newFakeRepository()
	folder := repo.put(NodeKindFolder, nil, 10)
	r := NewPositionResolver(repo)

	pos, err := r.ResolveCreatePosition(context.Background(), testTenant, &folder.ID, PositionLastChild)
	require.NoError(t, err)
	require.Equal(t, &folder.ID, pos.ParentID)
	require.Equal(t, AllocateOrderKey(nil, nil), pos.OrderKey)
}

func TestResolveCreatePosition_LastChildAfterExistingChildren(t *testing.T) {
	repo := newFakeRepository()
	folder := repo.put(NodeKindFolder, nil, 10)
	repo.put(NodeKindLeaf, &folder, 100)
	repo.put(NodeKindLeaf, &folder, 200)
	r := NewPositionResolver(repo)

	pos, err := r.ResolveCreatePosition(context.Background(), testTenant, &folder.ID, PositionLastChild)
	require.NoError(t, err)
	require.Greater(t, pos.OrderKey, 200.0)
	require.Less(t, pos.OrderKey, MaxOrderKey)
}

func TestResolveCreatePosition_LeafParentIsRejected(t *testing.T) {
	repo := newFakeRepository()
	leaf := repo.put(NodeKindLeaf, nil, 10)
	r := NewPositionResolver(repo)

	_, err := r.ResolveCreatePosition(context.Background(), testTenant, &leaf.ID, PositionLastChild)
	require.ErrorIs(t, err, ErrTypeConstraintViolated)
	require.Zero(t, repo.saves)
}

func TestResolveCreatePosition_Errors(t *testing.T) {
	repo := newFakeRepository()
	repo.put(NodeKindFolder, nil, 10)
	r := NewPositionResolver(repo)
	ctx := context.Background()

	_, err := r.ResolveCreatePosition(ctx, testTenant, nil, PositionAbove)
	require.ErrorIs(t, err, ErrMissingReference)

	_, err = r.ResolveCreatePosition(ctx, testTenant, nil, PositionBelow)
	require.ErrorIs(t, err, ErrMissingReference)

	missing := uuid.New()
	_, err = r.ResolveCreatePosition(ctx, testTenant, &missing, PositionBelow)
	require.ErrorIs(t, err, ErrReferenceNotFound)
	var posErr *PositionError
	require.ErrorAs(t, err, &posErr)
	require.Equal(t, missing, *posErr.NodeID)

	_, err = r.ResolveCreatePosition(ctx, testTenant, &missing, PositionLastChild)
	require.ErrorIs(t, err, ErrReferenceNotFound)

	_, err = r.ResolveCreatePosition(ctx, testTenant, nil, RelativePosition(42))
	require.ErrorIs(t, err, ErrInvalidPosition)
}

func TestResolveMovePosition_AncestorIntoDescendant(t *testing.T) {
	repo := newFakeRepository()
	a := repo.put(NodeKindFolder, nil, 10)
	b := repo.put(NodeKindFolder, &a, 10)
	c := repo.put(NodeKindFolder, &b, 10)
	r := NewPositionResolver(repo)

	_, err := r.ResolveMovePosition(context.Background(), testTenant, a.ID, &c.ID, PositionLastChild)
	require.ErrorIs(t, err, ErrCycleDetected)

	_, err = r.ResolveMovePosition(context.Background(), testTenant, a.ID, &a.ID, PositionLastChild)
	require.ErrorIs(t, err, ErrCycleDetected)

	_, err = r.ResolveMovePosition(context.Background(), testTenant, b.ID, &c.ID, PositionAbove)
	require.ErrorIs(t, err, ErrCycleDetected)
}

func TestResolveMovePosition_IntoLeafIsRejectedBeforeCycleCheck(t *testing.T) {
	repo := newFakeRepository()
	a := repo.put(NodeKindFolder, nil, 10)
	leaf := repo.put(NodeKindLeaf, &a, 10)
	r := NewPositionResolver(repo)

	_, err := r.ResolveMovePosition(context.Background(), testTenant, a.ID, &leaf.ID, PositionLastChild)
	require.ErrorIs(t, err, ErrTypeConstraintViolated)
}

func TestResolveMovePosition_ExcludesMovingNodeFromSiblings(t *testing.T) {
	repo := newFakeRepository()
	first := repo.put(NodeKindLeaf, nil, 10)
	second := repo.put(NodeKindLeaf, nil, 20)
	third := repo.put(NodeKindLeaf, nil, 30)
	r := NewPositionResolver(repo)

	// Moving the middle node below the first must not use its own key as the upper bound.
	pos, err := r.ResolveMovePosition(context.Background(), testTenant, second.ID, &first.ID, PositionBelow)
	require.NoError(t, err)
	require.Equal(t, 20.0, pos.OrderKey)

	pos, err = r.ResolveMovePosition(context.Background(), testTenant, third.ID, nil, PositionLastChild)
	require.NoError(t, err)
	require.Greater(t, pos.OrderKey, 20.0)
}

func TestResolveMovePosition_RelativeToItselfKeepsPosition(t *testing.T) {
	repo := newFakeRepository()
	folder := repo.put(NodeKindFolder, nil, 1)
	n := repo.put(NodeKindLeaf, &folder, 42)
	r := NewPositionResolver(repo)

	pos, err := r.ResolveMovePosition(context.Background(), testTenant, n.ID, &n.ID, PositionAbove)
	require.NoError(t, err)
	require.Equal(t, &folder.ID, pos.ParentID)
	require.Equal(t, 42.0, pos.OrderKey)
}

func TestResolveMovePosition_MissingMovingNode(t *testing.T) {
	r := NewPositionResolver(newFakeRepository())
	_, err := r.ResolveMovePosition(context.Background(), testTenant, uuid.New(), nil, PositionLastChild)
	require.ErrorIs(t, err, ErrReferenceNotFound)
}

func TestResolveMovePosition_StaleSnapshotIsAFault(t *testing.T) {
	repo := newFakeRepository()
	a := repo.put(NodeKindFolder, nil, 10)
	b := repo.put(NodeKindFolder, nil, 20)
	// FindAll reports b without a, so the two lookups cannot agree.
	repo.snapshot = []Node{b}
	r := NewPositionResolver(repo)

	_, err := r.ResolveMovePosition(context.Background(), testTenant, a.ID, &b.ID, PositionLastChild)
	require.ErrorIs(t, err, ErrInternalConsistencyFault)
}

func TestResolveMovePosition_AlternatingSwapsStayFinite(t *testing.T) {
	for _, pos := range []RelativePosition{PositionAbove, PositionBelow} {
		t.Run(pos.String(), func(t *testing.T) {
			repo := newFakeRepository()
			x := repo.put(NodeKindLeaf, nil, 10)
			y := repo.put(NodeKindLeaf, nil, 20)
			r := NewPositionResolver(repo)
			ctx := context.Background()

			for i := 0; i < 2000; i++ {
				moving, reference := x.ID, y.ID
				if i%2 == 1 {
					moving, reference = y.ID, x.ID
				}
				got, err := r.ResolveMovePosition(ctx, testTenant, moving, &reference, pos)
				require.NoError(t, err)
				require.False(t, math.IsNaN(got.OrderKey) || math.IsInf(got.OrderKey, 0))
				require.GreaterOrEqual(t, got.OrderKey, 0.0)

				moved := repo.nodes[moving]
				moved.OrderKey = got.OrderKey
				moved.ParentID = got.ParentID
				repo.nodes[moving] = moved
			}
		})
	}
}
