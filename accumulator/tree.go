// Package accumulator implements the eligibility tree: a fixed-depth binary
// Merkle tree whose leaves are filled strictly left to right. Insertions are
// driven by the path the registrant submits, so the new root is the one the
// registration proof commits to.
package accumulator

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/vocdoni/zk-ballotbox/crypto"
	"github.com/vocdoni/zk-ballotbox/crypto/hash"
	"github.com/vocdoni/zk-ballotbox/db"
)

// MaxDepth bounds the tree depth so leaf indexes fit comfortably in uint64.
const MaxDepth = 32

var (
	ErrInvalidDepth = errors.New("invalid tree depth")
	// ErrInvalidSiblings is returned when the sibling path has the wrong
	// length or holds a node that is not 32 bytes.
	ErrInvalidSiblings = errors.New("invalid sibling path")
	// ErrInvalidIndices is returned when the path indices have the wrong
	// length or hold values other than 0 and 1.
	ErrInvalidIndices = errors.New("invalid path indices")
	// ErrInvalidPosition is returned when the path does not point to the
	// next free leaf.
	ErrInvalidPosition = errors.New("path does not designate the next free slot")
	ErrFull            = errors.New("tree is full")
	ErrDuplicateLeaf   = errors.New("leaf already in tree")
	// ErrInconsistentPath is returned in strict mode when the siblings do
	// not reproduce the current root with an empty leaf at the slot.
	ErrInconsistentPath = errors.New("sibling path inconsistent with current root")
	ErrInvalidLeaf      = errors.New("invalid leaf")
	ErrIndexOutOfRange  = errors.New("leaf index out of range")
)

var (
	keyRoot       = []byte("root")
	keySize       = []byte("size")
	prefixNode    = []byte("n")
	prefixLeafIdx = []byte("l")
)

// Tree is an append-only Merkle tree persisted in a db.Database. Reads go to
// the committed state; writes are staged by Apply into a caller owned
// transaction over the same database. Callers serialise Prepare and Apply.
type Tree struct {
	db     db.Database
	hasher hash.Hasher
	depth  int
	// zeros[l] is the root of an empty subtree of height l.
	zeros [][]byte
}

// New opens the tree stored in database.
func New(database db.Database, depth int, hasher hash.Hasher) (*Tree, error) {
	if depth < 1 || depth > MaxDepth {
		return nil, fmt.Errorf("%w: %d (1..%d)", ErrInvalidDepth, depth, MaxDepth)
	}
	zeros := make([][]byte, depth+1)
	zeros[0] = make([]byte, crypto.WordLen)
	for l := range depth {
		h, err := hasher.Hash(zeros[l], zeros[l])
		if err != nil {
			return nil, fmt.Errorf("hash empty subtree: %w", err)
		}
		zeros[l+1] = h
	}
	return &Tree{db: database, hasher: hasher, depth: depth, zeros: zeros}, nil
}

func (t *Tree) Depth() int { return t.depth }

// Capacity is the number of leaves the tree can hold.
func (t *Tree) Capacity() uint64 { return uint64(1) << t.depth }

// Hasher returns the hash function of the tree.
func (t *Tree) Hasher() hash.Hasher { return t.hasher }

// EmptyRoot is the root of the tree before any insertion.
func (t *Tree) EmptyRoot() []byte { return bytes.Clone(t.zeros[t.depth]) }

// Root returns the current root.
func (t *Tree) Root() ([]byte, error) {
	root, err := t.db.Get(keyRoot)
	if errors.Is(err, db.ErrKeyNotFound) {
		return t.EmptyRoot(), nil
	}
	return root, err
}

// Size returns the number of inserted leaves, which is also the index of
// the next free slot.
func (t *Tree) Size() (uint64, error) {
	v, err := t.db.Get(keySize)
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(v), nil
}

// Contains returns the index of leaf, if it was inserted.
func (t *Tree) Contains(leaf []byte) (uint64, bool, error) {
	v, err := t.db.Get(leafKey(leaf))
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return binary.BigEndian.Uint64(v), true, nil
}

// Node returns the node at level (0 for leaves) and position index, or the
// empty subtree root when nothing was written there.
func (t *Tree) Node(level int, index uint64) ([]byte, error) {
	if level < 0 || level > t.depth {
		return nil, fmt.Errorf("%w: level %d", ErrIndexOutOfRange, level)
	}
	v, err := t.db.Get(nodeKey(level, index))
	if errors.Is(err, db.ErrKeyNotFound) {
		return bytes.Clone(t.zeros[level]), nil
	}
	return v, err
}

// Leaves returns the inserted leaves in insertion order.
func (t *Tree) Leaves() ([][]byte, error) {
	var leaves [][]byte
	err := t.db.Iterate(nodePrefix(0), func(_, v []byte) bool {
		leaves = append(leaves, bytes.Clone(v))
		return true
	})
	return leaves, err
}

// Path returns the siblings and path indices of the leaf at index. Index
// may be Size(), giving the path a registrant needs for the next insertion.
func (t *Tree) Path(index uint64) ([][]byte, []uint8, error) {
	size, err := t.Size()
	if err != nil {
		return nil, nil, err
	}
	if index > size || index >= t.Capacity() {
		return nil, nil, fmt.Errorf("%w: %d (size %d)", ErrIndexOutOfRange, index, size)
	}
	siblings := make([][]byte, t.depth)
	for l := range t.depth {
		node, err := t.Node(l, (index>>l)^1)
		if err != nil {
			return nil, nil, err
		}
		siblings[l] = node
	}
	return siblings, PathIndices(index, t.depth), nil
}

// NextPath returns the next free index together with its path.
func (t *Tree) NextPath() (uint64, [][]byte, []uint8, error) {
	size, err := t.Size()
	if err != nil {
		return 0, nil, nil, err
	}
	if size >= t.Capacity() {
		return 0, nil, nil, ErrFull
	}
	siblings, indices, err := t.Path(size)
	return size, siblings, indices, err
}

// Insertion is a validated, not yet persisted, leaf insertion.
type Insertion struct {
	Index   uint64
	Leaf    []byte
	OldRoot []byte
	NewRoot []byte
	// nodes[l] is the new value of the level l node on the leaf path.
	nodes [][]byte
}

// Prepare validates an insertion of leaf at the position given by indices
// and computes the resulting root from siblings. Nothing is written. In
// strict mode the siblings must also reproduce the current root with an
// empty leaf at that position, which keeps the stored nodes consistent even
// when the registration verifier does not check it.
func (t *Tree) Prepare(leaf []byte, siblings [][]byte, indices []uint8, strict bool) (*Insertion, error) {
	if len(leaf) != crypto.WordLen || bytes.Equal(leaf, t.zeros[0]) {
		return nil, fmt.Errorf("%w: must be a non-zero %d-byte word", ErrInvalidLeaf, crypto.WordLen)
	}
	// verifiers and the poseidon hasher read leaves mod r, leaf+r would be a
	// second registration of the same commitment
	if !crypto.IsFieldElement(leaf) {
		return nil, fmt.Errorf("%w: not a canonical field element", ErrInvalidLeaf)
	}
	if err := t.checkSiblings(siblings); err != nil {
		return nil, err
	}
	index, err := IndexFromPath(indices, t.depth)
	if err != nil {
		return nil, err
	}
	size, err := t.Size()
	if err != nil {
		return nil, err
	}
	if size >= t.Capacity() {
		return nil, ErrFull
	}
	if index != size {
		return nil, fmt.Errorf("%w: got %d, next is %d", ErrInvalidPosition, index, size)
	}
	if _, found, err := t.Contains(leaf); err != nil {
		return nil, err
	} else if found {
		return nil, ErrDuplicateLeaf
	}
	oldRoot, err := t.Root()
	if err != nil {
		return nil, err
	}
	if strict {
		empty, err := ComputePath(t.hasher, t.zeros[0], siblings, indices)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(empty[t.depth], oldRoot) {
			return nil, ErrInconsistentPath
		}
	}
	nodes, err := ComputePath(t.hasher, leaf, siblings, indices)
	if err != nil {
		return nil, err
	}
	return &Insertion{
		Index:   index,
		Leaf:    bytes.Clone(leaf),
		OldRoot: oldRoot,
		NewRoot: nodes[t.depth],
		nodes:   nodes,
	}, nil
}

// Apply stages the writes of a prepared insertion into wtx, which must be a
// transaction over the tree database. The caller commits it.
func (t *Tree) Apply(wtx db.WriteTx, ins *Insertion) error {
	for l, node := range ins.nodes {
		if err := wtx.Set(nodeKey(l, ins.Index>>l), node); err != nil {
			return err
		}
	}
	if err := wtx.Set(keyRoot, ins.NewRoot); err != nil {
		return err
	}
	if err := wtx.Set(keySize, binary.BigEndian.AppendUint64(nil, ins.Index+1)); err != nil {
		return err
	}
	return wtx.Set(leafKey(ins.Leaf), binary.BigEndian.AppendUint64(nil, ins.Index))
}

// Insert prepares and commits an insertion in its own transaction.
func (t *Tree) Insert(leaf []byte, siblings [][]byte, indices []uint8, strict bool) (*Insertion, error) {
	ins, err := t.Prepare(leaf, siblings, indices, strict)
	if err != nil {
		return nil, err
	}
	wtx := t.db.WriteTx()
	defer wtx.Discard()
	if err := t.Apply(wtx, ins); err != nil {
		return nil, err
	}
	return ins, wtx.Commit()
}

func (t *Tree) checkSiblings(siblings [][]byte) error {
	if len(siblings) != t.depth {
		return fmt.Errorf("%w: %d nodes, expected %d", ErrInvalidSiblings, len(siblings), t.depth)
	}
	for l, s := range siblings {
		if len(s) != crypto.WordLen {
			return fmt.Errorf("%w: node %d is %d bytes", ErrInvalidSiblings, l, len(s))
		}
	}
	return nil
}

func nodePrefix(level int) []byte {
	return append(bytes.Clone(prefixNode), byte(level))
}

func nodeKey(level int, index uint64) []byte {
	return binary.BigEndian.AppendUint64(nodePrefix(level), index)
}

func leafKey(leaf []byte) []byte {
	return append(bytes.Clone(prefixLeafIdx), leaf...)
}
