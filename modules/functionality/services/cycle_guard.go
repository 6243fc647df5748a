package services

import (
	"fmt"

	"github.com/google/uuid"
)

// DetectCycle reports whether destination is source itself or one of its
// descendants in snapshot. The answer is computed twice, once by walking
// parent links up from destination and once by searching the subtree rebuilt
// under source; any disagreement, or a snapshot that does not describe a
// sound tree around the two nodes, is an InternalConsistencyFault.
func DetectCycle(destination, source Node, snapshot []Node) (bool, error) {
	if destination.ID == source.ID {
		return true, nil
	}

	index := make(map[uuid.UUID]Node, len(snapshot))
	for _, n := range snapshot {
		if _, dup := index[n.ID]; !dup {
			index[n.ID] = n
		}
	}

	storedDest, ok := index[destination.ID]
	if !ok {
		return false, consistencyFault(&destination.ID, "destination missing from snapshot")
	}
	storedSource, ok := index[source.ID]
	if !ok {
		return false, consistencyFault(&source.ID, "moving node missing from snapshot")
	}
	if !sameParent(storedDest.ParentID, destination.ParentID) || !sameParent(storedSource.ParentID, source.ParentID) {
		return false, consistencyFault(&source.ID, "snapshot is older than the nodes being validated")
	}

	direct, err := isAncestor(source.ID, storedDest, index)
	if err != nil {
		return false, err
	}

	subtree := FindSubtree(BuildTree(snapshot), source.ID)
	if subtree == nil {
		return false, consistencyFault(&source.ID, "moving node missing from rebuilt tree")
	}
	inSubtree := subtree.Contains(destination.ID)

	if direct != inSubtree {
		return false, consistencyFault(&source.ID, fmt.Sprintf(
			"ancestor lookup (%t) and subtree search (%t) disagree for destination %s",
			direct, inSubtree, destination.ID,
		))
	}
	return direct, nil
}

// isAncestor walks parent links up from n. A parent id absent from the index
// ends the chain, matching how BuildTree promotes orphans to roots.
func isAncestor(ancestorID uuid.UUID, n Node, index map[uuid.UUID]Node) (bool, error) {
	cur := n
	for steps := 0; cur.ParentID != nil; steps++ {
		if steps > len(index) {
			return false, consistencyFault(&n.ID, "stored parent chain contains a cycle")
		}
		if *cur.ParentID == ancestorID {
			return true, nil
		}
		parent, ok := index[*cur.ParentID]
		if !ok {
			return false, nil
		}
		cur = parent
	}
	return false, nil
}

func consistencyFault(nodeID *uuid.UUID, message string) *PositionError {
	return newPositionError(KindInternalConsistencyFault, nodeID, message, nil)
}
