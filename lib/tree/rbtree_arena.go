package tree

import (
	"math"

	"github.com/benz9527/xrbtree/lib/infra"
)

// nilLeaf is the slot #0 of every arena. It is the black sentinel
// standing for the absent child or parent, never allocated and never
// written after the arena is created.
const nilLeaf uint32 = 0

// [math.MaxUint32] is reserved.
const maxArenaSlots = math.MaxUint32 - 1

// All links are arena indices, so the parent link is a plain
// back reference and owns nothing.
type rbNode[K infra.OrderedKey, V any] struct {
	key    K
	val    V
	parent uint32
	left   uint32
	right  uint32
	// gen is bumped each time the slot stops naming the entry
	// its handles were taken from.
	gen   uint32
	color RBColor
	hasKV bool
}

type rbArena[K infra.OrderedKey, V any] struct {
	nodes []rbNode[K, V]
	gaps  []uint32
	// limit is the max number of live nodes, 0 means the uint32 index space.
	limit uint32
	used  uint32
}

func newRBArena[K infra.OrderedKey, V any](limit uint32) *rbArena[K, V] {
	arena := &rbArena[K, V]{
		limit: limit,
	}
	arena.reset()
	return arena
}

func (arena *rbArena[K, V]) capacity() uint32 {
	if arena.limit == 0 || arena.limit > maxArenaSlots {
		return maxArenaSlots
	}
	return arena.limit
}

// malloc hands out a red, unlinked node. Slot pointers taken before
// malloc must not be used after it, the backing slice may move.
func (arena *rbArena[K, V]) malloc(key K, val V) (uint32, error) {
	if arena.used >= arena.capacity() {
		return nilLeaf, ErrAllocationFailure
	}

	var idx uint32
	if n := len(arena.gaps); n > 0 {
		idx = arena.gaps[n-1]
		arena.gaps = arena.gaps[:n-1]
	} else {
		idx = uint32(len(arena.nodes))
		arena.nodes = append(arena.nodes, rbNode[K, V]{})
	}

	node := &arena.nodes[idx]
	node.key, node.val = key, val
	node.parent, node.left, node.right = nilLeaf, nilLeaf, nilLeaf
	node.color = Red
	node.hasKV = true
	arena.used++
	return idx, nil
}

func (arena *rbArena[K, V]) free(idx uint32) {
	if idx == nilLeaf {
		panic( /* debug assertion */ "[rbtree] node #0 is special and cannot be deallocated")
	}
	node := &arena.nodes[idx]
	if !node.hasKV {
		panic( /* debug assertion */ "[rbtree] double free")
	}
	gen := node.gen + 1
	*node = rbNode[K, V]{gen: gen}
	arena.gaps = append(arena.gaps, idx)
	arena.used--
}

// reset drops every slot but the sentinel. The generations are lost
// as well, so the tree has to bump its epoch.
func (arena *rbArena[K, V]) reset() {
	clear(arena.nodes)
	arena.nodes = arena.nodes[:0]
	arena.nodes = append(arena.nodes, rbNode[K, V]{color: Black})
	arena.gaps = arena.gaps[:0]
	arena.used = 0
}
