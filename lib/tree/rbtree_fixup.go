package tree

type insertCase uint8

const (
	insertBalanced insertCase = iota
	insertRedUncle
	insertInnerChild
	insertOuterChild
)

type removeCase uint8

const (
	removeResolved removeCase = iota
	removeRedSibling
	removeBlackNephews
	removeNearRedNephew
	removeFarRedNephew
)

// classifyInsert reads the neighborhood of the red node x.
func (tree *rbTree[K, V]) classifyInsert(x uint32) insertCase {
	p := tree.parentOf(x)
	if p == nilLeaf || tree.isBlack(p) {
		return insertBalanced
	}
	if tree.parentOf(p) == nilLeaf {
		// Red root, it is repainted after the loop.
		return insertBalanced
	}
	if tree.isRed(tree.sibling(p)) {
		return insertRedUncle
	}
	if tree.direction(x) != tree.direction(p) {
		return insertInnerChild
	}
	return insertOuterChild
}

/*
New node X is red by default.

<X> is a RED node.
[X] is a BLACK node (or NIL).
{X} is either a RED node or a BLACK node.

insertBalanced: X is root or X's parent P is black, hold p3 and p4.
The root is repainted into black anyway.

insertRedUncle: Both the parent P and the uncle U are red, grandpa G is black.
(red-violation)
After repainted G into red may be still red-violation.
Loop to fix grandpa.

	    [G]             <G>
	    / \             / \
	  <P> <U>  ====>  [P] [U]
	  /               /
	<X>             <X>

insertInnerChild: The parent P is red but the uncle U is black. (red-violation)
X is opposite direction to P. Rotate P to opposite direction.
After rotation still red-violation, P is the new X and it must enter
insertOuterChild to fix.

	  [G]                 [G]
	  / \    rotate(P)    / \
	<P> [U]  ========>  <X> [U]
	  \                 /
	  <X>             <P>

insertOuterChild: X is the same direction as parent.

	    [G]                 <P>               [P]
	    / \    rotate(G)    / \    repaint    / \
	  <P> [U]  ========>  <X> [G]  ======>  <X> <G>
	  /                         \                 \
	<X>                         [U]               [U]
*/
func (tree *rbTree[K, V]) insertRebalance(x uint32) (iterations int) {
	for {
		iterations++
		switch tree.classifyInsert(x) {
		case insertBalanced:
			tree.paint(tree.root, Black)
			return iterations
		case insertRedUncle:
			p := tree.parentOf(x)
			gp := tree.parentOf(p)
			tree.paint(p, Black)
			tree.paint(tree.sibling(p), Black)
			tree.paint(gp, Red)
			x = gp
		case insertInnerChild:
			p := tree.parentOf(x)
			// Turn P down to the side away from X.
			tree.rotate(p, -tree.direction(x))
			x = p
			fallthrough
		case insertOuterChild:
			p := tree.parentOf(x)
			gp := tree.parentOf(p)
			tree.rotate(gp, -tree.direction(p))
			tree.paint(p, Black)
			tree.paint(gp, Red)
			tree.paint(tree.root, Black)
			return iterations
		default:
			// impossible run to here
			panic( /* debug assertion */ "[rbtree] unknown insert rebalance case")
		}
	}
}

// nephews returns the sibling's children of x, the near one sits on
// x's side.
func (tree *rbTree[K, V]) nephews(x uint32) (near, far uint32) {
	s := tree.sibling(x)
	if s == nilLeaf {
		return nilLeaf, nilLeaf
	}
	if tree.direction(x) == Left {
		return tree.leftOf(s), tree.rightOf(s)
	}
	return tree.rightOf(s), tree.leftOf(s)
}

// classifyRemove reads the neighborhood of x carrying the extra black.
// The far nephew wins over the near one.
func (tree *rbTree[K, V]) classifyRemove(x uint32) removeCase {
	if x == tree.root || tree.isRed(x) {
		return removeResolved
	}
	if tree.isRed(tree.sibling(x)) {
		return removeRedSibling
	}
	near, far := tree.nephews(x)
	if tree.isRed(far) {
		return removeFarRedNephew
	}
	if tree.isRed(near) {
		return removeNearRedNephew
	}
	return removeBlackNephews
}

/*
<X> is a RED node.
[X] is a BLACK node (or NIL).
{X} is either a RED node or a BLACK node.

Sc is the same direction to X and it X's sibling's child node. (near)
Sd is the opposite direction to X and it X's sibling's child node. (far)

removeResolved: X is root or X is red. Repaint X into black.

removeRedSibling: X's sibling S is red, so the parent P, nephew node Sc and Sd
must be black. (Otherwise, red-violation)
(1) X is left node of P, left rotate P.
(2) X is right node of P, right rotate P.
(3) Repaint S into black, P into red.
X gets a black sibling, loop again.

	  [P]                   <S>               [S]
	  / \    l-rotate(P)    / \    repaint    / \
	[X] <S>  ==========>  [P] [Sd]  ======>  <P> [Sd]
	    / \               / \               / \
	 [Sc] [Sd]          [X] [Sc]          [X] [Sc]

removeBlackNephews: X's sibling S, nephew node Sc and Sd are black.
Paint the S into red to satisfy p4 locally. Then loop to handle P,
a red P is resolved right away.

	  {P}             {P}
	  / \             / \
	[X] [S]  ====>  [X] <S>
	    / \             / \
	 [Sc] [Sd]       [Sc] [Sd]

removeNearRedNephew: X's sibling S is black, nephew node Sc is red and Sd
is black. Ignore X's parent P's color (red or black is okay)
(1) If X is left node of P, right rotate S.
(2) If X is right node of P, left rotate S.
(3) Repaint S into red, Sc into black.
Enter into removeFarRedNephew to fix.

	                        {P}                {P}
	  {P}                   / \                / \
	  / \    r-rotate(S)  [X] <Sc>   repaint  [X] [Sc]
	[X] [S]  ==========>        \    ======>       \
	    / \                     [S]                <S>
	  <Sc> [Sd]                   \                  \
	                              [Sd]               [Sd]

removeFarRedNephew: X's sibling S is black and nephew node Sd is red.
Ignore X's parent P's color and Sc's color.
(1) If X is left node of P, left rotate P.
(2) If X is right node of P, right rotate P.
(3) Paint S with P's color, P into black.
(4) Repaint Sd into black.

	  {P}                   [S]                {S}
	  / \    l-rotate(P)    / \     repaint    / \
	[X] [S]  ==========>  {P} <Sd>  ======>  [P] [Sd]
	    / \               / \                / \
	 {Sc} <Sd>          [X] {Sc}           [X] {Sc}
*/
func (tree *rbTree[K, V]) removeRebalance(x uint32) (iterations int) {
	for {
		iterations++
		switch tree.classifyRemove(x) {
		case removeResolved:
			tree.paint(x, Black)
			return iterations
		case removeRedSibling:
			p, s := tree.parentOf(x), tree.sibling(x)
			tree.paint(s, Black)
			tree.paint(p, Red)
			tree.rotate(p, tree.direction(x))
		case removeBlackNephews:
			tree.paint(tree.sibling(x), Red)
			x = tree.parentOf(x)
		case removeNearRedNephew:
			s := tree.sibling(x)
			near, _ := tree.nephews(x)
			tree.paint(near, Black)
			tree.paint(s, Red)
			tree.rotate(s, -tree.direction(x))
			fallthrough
		case removeFarRedNephew:
			p, s := tree.parentOf(x), tree.sibling(x)
			_, far := tree.nephews(x)
			tree.paint(s, tree.nodes()[p].color)
			tree.paint(p, Black)
			tree.paint(far, Black)
			tree.rotate(p, tree.direction(x))
			tree.paint(tree.root, Black)
			return iterations
		default:
			// impossible run to here
			panic( /* debug assertion */ "[rbtree] unknown remove rebalance case")
		}
	}
}
