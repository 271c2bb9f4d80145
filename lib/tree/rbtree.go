package tree

import (
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/benz9527/xrbtree/lib/infra"
	"github.com/benz9527/xrbtree/xlog"
)

var _ RBNode[int, struct{}] = (*rbNodeRef[int, struct{}])(nil)

type rbNodeRef[K infra.OrderedKey, V any] struct {
	tree  *rbTree[K, V] // nil for the snapshot returned by removals
	key   K
	val   V
	epoch uint64
	idx   uint32
	gen   uint32
}

func (node *rbNodeRef[K, V]) Key() K {
	return node.key
}

func (node *rbNodeRef[K, V]) Val() V {
	return node.val
}

func (node *rbNodeRef[K, V]) HasKeyVal() bool {
	return node != nil
}

func (node *rbNodeRef[K, V]) Attached() bool {
	if node == nil || node.tree == nil {
		return false
	}
	_, err := node.tree.resolve(node)
	return err == nil
}

func (node *rbNodeRef[K, V]) Color() RBColor {
	if !node.Attached() {
		return Black
	}
	return node.tree.nodes()[node.idx].color
}

func (node *rbNodeRef[K, V]) Direction() RBDirection {
	if !node.Attached() {
		return Root
	}
	return node.tree.direction(node.idx)
}

func (node *rbNodeRef[K, V]) Left() RBNode[K, V] {
	if !node.Attached() {
		return nil
	}
	return node.tree.ref(node.tree.nodes()[node.idx].left)
}

func (node *rbNodeRef[K, V]) Right() RBNode[K, V] {
	if !node.Attached() {
		return nil
	}
	return node.tree.ref(node.tree.nodes()[node.idx].right)
}

func (node *rbNodeRef[K, V]) Parent() RBNode[K, V] {
	if !node.Attached() {
		return nil
	}
	return node.tree.ref(node.tree.nodes()[node.idx].parent)
}

type rbTree[K infra.OrderedKey, V any] struct {
	arena          *rbArena[K, V]
	logger         xlog.XLogger
	stats          *rbTreeStats
	count          int64
	epoch          uint64
	root           uint32
	isRmBorrowPred bool
}

func (tree *rbTree[K, V]) nodes() []rbNode[K, V] {
	return tree.arena.nodes
}

func (tree *rbTree[K, V]) Len() int64 {
	return tree.count
}

func (tree *rbTree[K, V]) Root() RBNode[K, V] {
	return tree.ref(tree.root)
}

// ref returns an untyped nil for the nil leaf, so callers are able to
// compare the result against nil.
func (tree *rbTree[K, V]) ref(idx uint32) RBNode[K, V] {
	if idx == nilLeaf {
		return nil
	}
	node := &tree.nodes()[idx]
	return &rbNodeRef[K, V]{
		tree:  tree,
		key:   node.key,
		val:   node.val,
		epoch: tree.epoch,
		idx:   idx,
		gen:   node.gen,
	}
}

func (tree *rbTree[K, V]) snapshot(idx uint32) *rbNodeRef[K, V] {
	node := &tree.nodes()[idx]
	return &rbNodeRef[K, V]{
		key: node.key,
		val: node.val,
	}
}

// resolve maps a handle back to its slot. Handles of another tree, of a
// released tree or of a slot that has been recycled are not found.
func (tree *rbTree[K, V]) resolve(node RBNode[K, V]) (uint32, error) {
	ref, ok := node.(*rbNodeRef[K, V])
	if !ok || ref == nil || ref.tree != tree || ref.epoch != tree.epoch {
		return nilLeaf, ErrNotFound
	}
	if ref.idx == nilLeaf || int(ref.idx) >= len(tree.nodes()) {
		return nilLeaf, ErrNotFound
	}
	if n := &tree.nodes()[ref.idx]; !n.hasKV || n.gen != ref.gen {
		return nilLeaf, ErrNotFound
	}
	return ref.idx, nil
}

func (tree *rbTree[K, V]) isRed(idx uint32) bool {
	return idx != nilLeaf && tree.nodes()[idx].color == Red
}

// The nil leaf is black.
func (tree *rbTree[K, V]) isBlack(idx uint32) bool {
	return !tree.isRed(idx)
}

func (tree *rbTree[K, V]) parentOf(idx uint32) uint32 {
	return tree.nodes()[idx].parent
}

func (tree *rbTree[K, V]) leftOf(idx uint32) uint32 {
	return tree.nodes()[idx].left
}

func (tree *rbTree[K, V]) rightOf(idx uint32) uint32 {
	return tree.nodes()[idx].right
}

func (tree *rbTree[K, V]) paint(idx uint32, color RBColor) {
	if idx == nilLeaf {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] paint the nil leaf")
	}
	tree.nodes()[idx].color = color
}

func (tree *rbTree[K, V]) direction(idx uint32) RBDirection {
	if idx == nilLeaf {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] nil leaf node without direction")
	}
	p := tree.parentOf(idx)
	if p == nilLeaf {
		return Root
	}
	if tree.leftOf(p) == idx {
		return Left
	}
	return Right
}

func (tree *rbTree[K, V]) sibling(idx uint32) uint32 {
	switch tree.direction(idx) {
	case Left:
		return tree.rightOf(tree.parentOf(idx))
	case Right:
		return tree.leftOf(tree.parentOf(idx))
	default:
	}
	return nilLeaf
}

func (tree *rbTree[K, V]) linkLeft(p, c uint32) {
	tree.nodes()[p].left = c
	if c != nilLeaf {
		tree.nodes()[c].parent = p
	}
}

func (tree *rbTree[K, V]) linkRight(p, c uint32) {
	tree.nodes()[p].right = c
	if c != nilLeaf {
		tree.nodes()[c].parent = p
	}
}

// transplant puts c at the position dir under p, the root position if dir is Root.
func (tree *rbTree[K, V]) transplant(p uint32, dir RBDirection, c uint32) {
	switch dir {
	case Root:
		tree.root = c
		if c != nilLeaf {
			tree.nodes()[c].parent = nilLeaf
		}
	case Left:
		tree.linkLeft(p, c)
	case Right:
		tree.linkRight(p, c)
	default:
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] unknown node direction to transplant")
	}
}

func (tree *rbTree[K, V]) minimum(idx uint32) uint32 {
	for idx != nilLeaf && tree.leftOf(idx) != nilLeaf {
		idx = tree.leftOf(idx)
	}
	return idx
}

func (tree *rbTree[K, V]) maximum(idx uint32) uint32 {
	for idx != nilLeaf && tree.rightOf(idx) != nilLeaf {
		idx = tree.rightOf(idx)
	}
	return idx
}

// The pred node of the current node is its previous node in sorted order
func (tree *rbTree[K, V]) pred(x uint32) uint32 {
	if x == nilLeaf {
		return nilLeaf
	}
	if l := tree.leftOf(x); l != nilLeaf {
		return tree.maximum(l)
	}

	aux := tree.parentOf(x)
	// Backtrack to father node that is the x's pred.
	for aux != nilLeaf && x == tree.leftOf(aux) {
		x = aux
		aux = tree.parentOf(aux)
	}
	return aux
}

// The succ node of the current node is its next node in sorted order.
func (tree *rbTree[K, V]) succ(x uint32) uint32 {
	if x == nilLeaf {
		return nilLeaf
	}
	if r := tree.rightOf(x); r != nilLeaf {
		return tree.minimum(r)
	}

	aux := tree.parentOf(x)
	// Backtrack to father node that is the x's succ.
	for aux != nilLeaf && x == tree.rightOf(aux) {
		x = aux
		aux = tree.parentOf(aux)
	}
	return aux
}

// References:
// https://elixir.bootlin.com/linux/latest/source/lib/rbtree.c
// rbtree properties:
// https://en.wikipedia.org/wiki/Red%E2%80%93black_tree#Properties
// p1. Every node is either red or black.
// p2. All NIL nodes are considered black.
// p3. A red node does not have a red child. (red-violation)
// p4. Every path from a given node to any of its descendant
//   NIL nodes goes through the same number of black nodes. (black-violation)
// p5. The root is black.
// (Conclusion) If a node X has exactly one child, it must be a red child,
//   because if it were black, its NIL descendants would sit at a different
//   black depth than X's NIL child, violating p4.
// So the shortest path nodes are black nodes. Otherwise,
// the path must contain red node.
// The longest path nodes' number is 2 * shortest path nodes' number.

/*
		 |                         |
		 X                         S
		/ \     leftRotate(X)     / \
	   L   S    ============>    X   Sd
		  / \                   / \
		Sc   Sd                L   Sc
*/
func (tree *rbTree[K, V]) leftRotate(x uint32) {
	if x == nilLeaf || tree.rightOf(x) == nilLeaf {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] left rotate node x is nil or x.right is nil")
	}

	p, y, dir := tree.parentOf(x), tree.rightOf(x), tree.direction(x)
	tree.linkRight(x, tree.leftOf(y))
	tree.linkLeft(y, x)
	tree.transplant(p, dir, y)
	tree.stats.IncreaseRotationCount(Left)
}

/*
			 |                         |
			 X                         S
			/ \     rightRotate(S)    / \
	       L   S    <============    X   R
			  / \                   / \
			Sc   Sd               Sc   Sd
*/
func (tree *rbTree[K, V]) rightRotate(x uint32) {
	if x == nilLeaf || tree.leftOf(x) == nilLeaf {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] right rotate node x is nil or x.left is nil")
	}

	p, y, dir := tree.parentOf(x), tree.leftOf(x), tree.direction(x)
	tree.linkLeft(x, tree.rightOf(y))
	tree.linkRight(y, x)
	tree.transplant(p, dir, y)
	tree.stats.IncreaseRotationCount(Right)
}

// rotate turns x down to the dir side.
func (tree *rbTree[K, V]) rotate(x uint32, dir RBDirection) {
	switch dir {
	case Left:
		tree.leftRotate(x)
	case Right:
		tree.rightRotate(x)
	default:
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] unknown rotate direction")
	}
}

func (tree *rbTree[K, V]) search(key K) uint32 {
	for aux := tree.root; aux != nilLeaf; {
		res := infra.CompareOrderedKey(key, tree.nodes()[aux].key)
		if /* equal */ res == 0 {
			return aux
		} else /* less */ if res < 0 {
			aux = tree.leftOf(aux)
		} else /* greater */ {
			aux = tree.rightOf(aux)
		}
	}
	return nilLeaf
}

func (tree *rbTree[K, V]) Search(key K) (RBNode[K, V], error) {
	x := tree.search(key)
	if x == nilLeaf {
		return nil, ErrNotFound
	}
	return tree.ref(x), nil
}

func (tree *rbTree[K, V]) reject(op string, key K, err error) error {
	tree.stats.IncreaseRejectedCount(op)
	if tree.logger != nil {
		tree.logger.Debug("[rbtree] operation rejected",
			zap.String("op", op),
			zap.Any("key", key),
			zap.String("reason", err.Error()),
		)
	}
	return err
}

func (tree *rbTree[K, V]) allocFailure(op string, key K) error {
	tree.stats.IncreaseRejectedCount(op)
	if tree.logger != nil {
		tree.logger.Warn("[rbtree] node allocation failure",
			zap.String("op", op),
			zap.Any("key", key),
			zap.Int64("len", tree.count),
			zap.Uint32("capacity", tree.arena.capacity()),
		)
	}
	return ErrAllocationFailure
}

// Insert rejects a present key, the tree is left unchanged.
// Use Replace to update the value of a present key.
//
// i1: Empty rbtree, the new node becomes the root and is painted black.
// i2: Descend like Search, the new red node is linked as a leaf
// of the last visited node, then rebalanced.
func (tree *rbTree[K, V]) Insert(key K, val V) (RBNode[K, V], error) {
	if infra.IsUnorderedKey(key) {
		return nil, tree.reject("insert", key, ErrUnorderedKey)
	}

	var (
		y   = nilLeaf
		dir = Root
	)
	for x := tree.root; x != nilLeaf; {
		y = x
		res := infra.CompareOrderedKey(key, tree.nodes()[x].key)
		if /* equal */ res == 0 {
			return nil, tree.reject("insert", key, ErrDuplicateKey)
		} else /* less */ if res < 0 {
			x, dir = tree.leftOf(x), Left
		} else /* greater */ {
			x, dir = tree.rightOf(x), Right
		}
	}

	z, err := tree.arena.malloc(key, val)
	if err != nil {
		return nil, tree.allocFailure("insert", key)
	}
	tree.transplant(y, dir, z)
	tree.count++
	tree.stats.RecordFixup("insert", tree.insertRebalance(z))
	tree.stats.IncreaseInsertCount()
	return tree.ref(z), nil
}

/*
r1: Current node X has left and right node.
Find node X's pred or succ and move its key and value into X.
Then remove the borrowed node instead, which has one child at most.

Find pred:

	  |                    |
	  X                    L
	 / \                  / \
	L  ..   swap(X, L)   X  ..
		|   =========>       |
		P                    P
	   / \                  / \
	  S  ..                S  ..

Find succ:

	  |                    |
	  X                    S
	 / \                  / \
	L  ..   swap(X, S)   L  ..
		|   =========>       |
		P                    P
	   / \                  / \
	  S  ..                X  ..

r2: Current node X contains one not nil child node only.
The child node must be a red node. (See conclusion. Otherwise, black-violation)
Splice the child into X's position and repaint it into black.

r3: (1) Current node X is a red leaf node, remove directly.

r3: (2) Current node X is a black leaf node, we have to rebalance before
unlink it (black-violation). X stays a leaf during the rebalance, so the
nil leaf is never written.
*/
func (tree *rbTree[K, V]) removeNode(z uint32) *rbNodeRef[K, V] {
	res := tree.snapshot(z)

	y := z
	if /* r1 */ tree.leftOf(z) != nilLeaf && tree.rightOf(z) != nilLeaf {
		if tree.isRmBorrowPred {
			y = tree.maximum(tree.leftOf(z))
		} else {
			y = tree.minimum(tree.rightOf(z))
		}
		nodes := tree.nodes()
		nodes[z].key, nodes[z].val = nodes[y].key, nodes[y].val
		// The handles of z named the removed entry.
		nodes[z].gen++
	}

	child := tree.leftOf(y)
	if child == nilLeaf {
		child = tree.rightOf(y)
	}
	if /* r2 */ child != nilLeaf {
		tree.transplant(tree.parentOf(y), tree.direction(y), child)
		tree.paint(child, Black)
	} else {
		if /* r3 (2) */ tree.isBlack(y) && y != tree.root {
			tree.stats.RecordFixup("remove", tree.removeRebalance(y))
		}
		tree.transplant(tree.parentOf(y), tree.direction(y), nilLeaf)
	}

	tree.arena.free(y)
	tree.count--
	tree.stats.IncreaseRemoveCount()
	return res
}

func (tree *rbTree[K, V]) Remove(key K) (RBNode[K, V], error) {
	z := tree.search(key)
	if z == nilLeaf {
		return nil, tree.reject("remove", key, ErrNotFound)
	}
	return tree.removeNode(z), nil
}

// RemoveNode removes the entry of an attached handle.
func (tree *rbTree[K, V]) RemoveNode(node RBNode[K, V]) (RBNode[K, V], error) {
	z, err := tree.resolve(node)
	if err != nil {
		var key K
		if node != nil {
			key = node.Key()
		}
		return nil, tree.reject("remove", key, err)
	}
	return tree.removeNode(z), nil
}

func (tree *rbTree[K, V]) RemoveMin() (RBNode[K, V], error) {
	_min := tree.minimum(tree.root)
	if _min == nilLeaf {
		var key K
		return nil, tree.reject("remove", key, ErrNotFound)
	}
	return tree.removeNode(_min), nil
}

func (tree *rbTree[K, V]) RemoveMax() (RBNode[K, V], error) {
	_max := tree.maximum(tree.root)
	if _max == nilLeaf {
		var key K
		return nil, tree.reject("remove", key, ErrNotFound)
	}
	return tree.removeNode(_max), nil
}

type RBTreeOpt[K infra.OrderedKey, V any] func(*rbTree[K, V])

// WithRBTreeRemoveBorrowPred moves the predecessor into a removed node with
// two children. The successor is borrowed by default.
func WithRBTreeRemoveBorrowPred[K infra.OrderedKey, V any]() RBTreeOpt[K, V] {
	return func(tree *rbTree[K, V]) {
		tree.isRmBorrowPred = true
	}
}

// WithRBTreeCapacity limits the number of live nodes. Insert and Replace
// return ErrAllocationFailure once the limit is reached.
func WithRBTreeCapacity[K infra.OrderedKey, V any](capacity uint32) RBTreeOpt[K, V] {
	return func(tree *rbTree[K, V]) {
		tree.arena.limit = capacity
	}
}

func WithRBTreeLogger[K infra.OrderedKey, V any](logger xlog.XLogger) RBTreeOpt[K, V] {
	return func(tree *rbTree[K, V]) {
		if logger == nil {
			tree.logger = nil
			return
		}
		tree.logger = logger.Named("rbtree")
	}
}

// WithRBTreeStats records the tree metrics by the global otel meter
// provider, or by the first given provider.
func WithRBTreeStats[K infra.OrderedKey, V any](name string, mp ...metric.MeterProvider) RBTreeOpt[K, V] {
	return func(tree *rbTree[K, V]) {
		tree.stats = newRBTreeStats(name, mp...)
	}
}

func NewRBTree[K infra.OrderedKey, V any](opts ...RBTreeOpt[K, V]) RBTree[K, V] {
	tree := &rbTree[K, V]{
		arena:          newRBArena[K, V](0),
		root:           nilLeaf,
		count:          0,
		isRmBorrowPred: false,
	}

	for _, o := range opts {
		if o == nil {
			continue
		}
		o(tree)
	}
	return tree
}
