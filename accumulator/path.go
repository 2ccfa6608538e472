package accumulator

import (
	"fmt"

	"github.com/vocdoni/zk-ballotbox/crypto/hash"
)

// PathIndices returns the left/right bits locating index in a tree of the
// given depth, least significant first: indices[l] is 1 when the level l
// node on the path is a right child.
func PathIndices(index uint64, depth int) []uint8 {
	out := make([]uint8, depth)
	for l := range depth {
		out[l] = uint8((index >> l) & 1)
	}
	return out
}

// IndexFromPath is the inverse of PathIndices.
func IndexFromPath(indices []uint8, depth int) (uint64, error) {
	if len(indices) != depth {
		return 0, fmt.Errorf("%w: %d bits, expected %d", ErrInvalidIndices, len(indices), depth)
	}
	var index uint64
	for l, bit := range indices {
		if bit > 1 {
			return 0, fmt.Errorf("%w: bit %d is %d", ErrInvalidIndices, l, bit)
		}
		index |= uint64(bit) << l
	}
	return index, nil
}

// ComputePath hashes leaf up to the root through siblings and returns every
// node on the way: nodes[0] is the leaf and nodes[len(siblings)] the root.
func ComputePath(h hash.Hasher, leaf []byte, siblings [][]byte, indices []uint8) ([][]byte, error) {
	if len(indices) != len(siblings) {
		return nil, fmt.Errorf("%w: %d bits for %d siblings", ErrInvalidIndices, len(indices), len(siblings))
	}
	nodes := make([][]byte, len(siblings)+1)
	nodes[0] = leaf
	for l, sibling := range siblings {
		var (
			parent []byte
			err    error
		)
		if indices[l] == 0 {
			parent, err = h.Hash(nodes[l], sibling)
		} else {
			parent, err = h.Hash(sibling, nodes[l])
		}
		if err != nil {
			return nil, fmt.Errorf("hash level %d: %w", l, err)
		}
		nodes[l+1] = parent
	}
	return nodes, nil
}

// ComputeRoot returns the root reached from leaf through siblings.
func ComputeRoot(h hash.Hasher, leaf []byte, siblings [][]byte, indices []uint8) ([]byte, error) {
	nodes, err := ComputePath(h, leaf, siblings, indices)
	if err != nil {
		return nil, err
	}
	return nodes[len(nodes)-1], nil
}
