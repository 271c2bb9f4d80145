package tree

import (
	"iter"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func (tree *rbTree[K, V]) First() RBNode[K, V] {
	return tree.ref(tree.minimum(tree.root))
}

func (tree *rbTree[K, V]) Last() RBNode[K, V] {
	return tree.ref(tree.maximum(tree.root))
}

// Successor returns nil for the maximum or a detached handle.
func (tree *rbTree[K, V]) Successor(node RBNode[K, V]) RBNode[K, V] {
	x, err := tree.resolve(node)
	if err != nil {
		return nil
	}
	return tree.ref(tree.succ(x))
}

// Predecessor returns nil for the minimum or a detached handle.
func (tree *rbTree[K, V]) Predecessor(node RBNode[K, V]) RBNode[K, V] {
	x, err := tree.resolve(node)
	if err != nil {
		return nil
	}
	return tree.ref(tree.pred(x))
}

// All yields the entries in increasing key order, each call starts over
// from the minimum.
func (tree *rbTree[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for x := tree.minimum(tree.root); x != nilLeaf; x = tree.succ(x) {
			if n := &tree.nodes()[x]; !yield(n.key, n.val) {
				return
			}
		}
	}
}

// Backward yields the entries in decreasing key order.
func (tree *rbTree[K, V]) Backward() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for x := tree.maximum(tree.root); x != nilLeaf; x = tree.pred(x) {
			if n := &tree.nodes()[x]; !yield(n.key, n.val) {
				return
			}
		}
	}
}

func (tree *rbTree[K, V]) Nodes() iter.Seq[RBNode[K, V]] {
	return func(yield func(RBNode[K, V]) bool) {
		for x := tree.minimum(tree.root); x != nilLeaf; x = tree.succ(x) {
			if !yield(tree.ref(x)) {
				return
			}
		}
	}
}

func (tree *rbTree[K, V]) BackwardNodes() iter.Seq[RBNode[K, V]] {
	return func(yield func(RBNode[K, V]) bool) {
		for x := tree.maximum(tree.root); x != nilLeaf; x = tree.pred(x) {
			if !yield(tree.ref(x)) {
				return
			}
		}
	}
}

// Foreach is the inorder traversal, stopped once the action returns false.
func (tree *rbTree[K, V]) Foreach(action func(idx int64, color RBColor, key K, val V) bool) {
	idx := int64(0)
	for x := tree.minimum(tree.root); x != nilLeaf; x = tree.succ(x) {
		n := &tree.nodes()[x]
		if !action(idx, n.color, n.key, n.val) {
			return
		}
		idx++
	}
}

func (tree *rbTree[K, V]) Height() int {
	return tree.height(tree.root)
}

func (tree *rbTree[K, V]) height(x uint32) int {
	if x == nilLeaf {
		return 0
	}
	return 1 + max(tree.height(tree.leftOf(x)), tree.height(tree.rightOf(x)))
}

/*
Replace links a new node into exactly the old node's position, with the
same color. The old slot is released, so the old handle is detached.

	    P                  P
	    |                  |
	  {Old}    ====>     {New}
	  /   \              /   \
	 L     R            L     R
*/
func (tree *rbTree[K, V]) Replace(old RBNode[K, V], key K, val V) (RBNode[K, V], error) {
	x, err := tree.resolve(old)
	if err != nil {
		return nil, tree.reject("replace", key, err)
	}
	if tree.nodes()[x].key != key {
		return nil, tree.reject("replace", key, ErrKeyMismatch)
	}

	z, err := tree.arena.malloc(key, val)
	if err != nil {
		return nil, tree.allocFailure("replace", key)
	}
	// The arena may have moved, load the slots after malloc.
	nodes := tree.nodes()
	nodes[z].color = nodes[x].color
	p, dir := nodes[x].parent, tree.direction(x)
	tree.linkLeft(z, nodes[x].left)
	tree.linkRight(z, nodes[x].right)
	tree.transplant(p, dir, z)
	tree.arena.free(x)
	tree.stats.IncreaseReplaceCount()
	return tree.ref(z), nil
}

// postOrderFirst descends to the first node of the post-order walk of x.
func (tree *rbTree[K, V]) postOrderFirst(x uint32) uint32 {
	for x != nilLeaf {
		if l := tree.leftOf(x); l != nilLeaf {
			x = l
		} else if r := tree.rightOf(x); r != nilLeaf {
			x = r
		} else {
			return x
		}
	}
	return nilLeaf
}

// postOrderNext only reads x's ancestors, which are visited after x.
func (tree *rbTree[K, V]) postOrderNext(x uint32) uint32 {
	p := tree.parentOf(x)
	if p == nilLeaf {
		return nilLeaf
	}
	if r := tree.rightOf(p); x == tree.leftOf(p) && r != nilLeaf {
		return tree.postOrderFirst(r)
	}
	return p
}

func (tree *rbTree[K, V]) Release() {
	_ = tree.ReleaseFunc(nil)
}

// ReleaseFunc visits and releases every node exactly once, children
// before parents. The errors returned by fn are combined and do not
// stop the teardown. All handles taken before are detached.
func (tree *rbTree[K, V]) ReleaseFunc(fn func(key K, val V) error) error {
	var (
		merr     error
		released int64
	)
	for x := tree.postOrderFirst(tree.root); x != nilLeaf; {
		// Compute the next target before x is gone.
		next := tree.postOrderNext(x)
		if fn != nil {
			n := &tree.nodes()[x]
			merr = multierr.Append(merr, fn(n.key, n.val))
		}
		tree.arena.free(x)
		released++
		x = next
	}

	tree.root = nilLeaf
	tree.count = 0
	tree.arena.reset()
	tree.epoch++
	tree.stats.RecordRelease(released)
	if tree.logger != nil {
		tree.logger.Info("[rbtree] released",
			zap.Int64("nodes", released),
			zap.Int("errors", len(multierr.Errors(merr))),
		)
	}
	return merr
}
