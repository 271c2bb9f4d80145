package tree

import (
	"errors"
	"iter"

	"github.com/benz9527/xrbtree/lib/infra"
)

// go install golang.org/x/tools/cmd/stringer@latest

//go:generate stringer -type=RBColor
type RBColor uint8

const (
	Black RBColor = iota
	Red
)

//go:generate stringer -type=RBDirection
type RBDirection int8

const (
	Left RBDirection = -1 + iota
	Root
	Right
)

var (
	ErrDuplicateKey      = errors.New("[rbtree] duplicate key")
	ErrKeyMismatch       = errors.New("[rbtree] replace key mismatch")
	ErrNotFound          = errors.New("[rbtree] not found")
	ErrAllocationFailure = errors.New("[rbtree] node allocation failure")
	ErrUnorderedKey      = errors.New("[rbtree] unordered key")
)

// RBNode is a handle to an entry of the tree.
// Key and Val are captured when the handle is taken. The structural
// accessors read the live tree and return nil (or Black and Root)
// once the handle is detached.
// A handle is detached after its entry is removed or replaced, after
// the node receives a borrowed entry during a removal, or after
// the tree is released.
type RBNode[K infra.OrderedKey, V any] interface {
	Key() K
	Val() V
	HasKeyVal() bool
	Attached() bool
	Color() RBColor
	Direction() RBDirection
	Left() RBNode[K, V]
	Right() RBNode[K, V]
	Parent() RBNode[K, V]
}

// RBTree is not goroutine safe, see SyncRBTree.
// Iterators must not be interleaved with mutations of the same tree.
type RBTree[K infra.OrderedKey, V any] interface {
	Len() int64
	Root() RBNode[K, V]
	Height() int
	Search(key K) (RBNode[K, V], error)
	Insert(key K, val V) (RBNode[K, V], error)
	Remove(key K) (RBNode[K, V], error)
	RemoveNode(node RBNode[K, V]) (RBNode[K, V], error)
	RemoveMin() (RBNode[K, V], error)
	RemoveMax() (RBNode[K, V], error)
	Replace(old RBNode[K, V], key K, val V) (RBNode[K, V], error)
	First() RBNode[K, V]
	Last() RBNode[K, V]
	Successor(node RBNode[K, V]) RBNode[K, V]
	Predecessor(node RBNode[K, V]) RBNode[K, V]
	All() iter.Seq2[K, V]
	Backward() iter.Seq2[K, V]
	Nodes() iter.Seq[RBNode[K, V]]
	BackwardNodes() iter.Seq[RBNode[K, V]]
	Foreach(action func(idx int64, color RBColor, key K, val V) bool)
	Release()
	ReleaseFunc(fn func(key K, val V) error) error
}
