package tree

import (
	"math"

	"go.uber.org/multierr"

	"github.com/benz9527/xrbtree/lib/infra"
)

// rbtree rule validation utilities.
// They only walk the RBNode handles, recursively, so they do not share
// any code path with the tree they check.

// References:
// https://github1s.com/minghu6/rust-minghu6/blob/master/coll_st/src/bst/rb.rs

func isBlack[K infra.OrderedKey, V any](node RBNode[K, V]) bool {
	return node == nil || node.Color() == Black
}

func isRed[K infra.OrderedKey, V any](node RBNode[K, V]) bool {
	return node != nil && node.Color() == Red
}

// preorder stops at the first error.
func preorder[K infra.OrderedKey, V any](node RBNode[K, V], fn func(RBNode[K, V]) error) error {
	if node == nil {
		return nil
	}
	if err := fn(node); err != nil {
		return err
	}
	if err := preorder[K, V](node.Left(), fn); err != nil {
		return err
	}
	return preorder[K, V](node.Right(), fn)
}

func RootViolationValidate[K infra.OrderedKey, V any](tree RBTree[K, V]) error {
	root := tree.Root()
	if root == nil {
		return nil
	}
	if root.Parent() != nil || root.Direction() != Root {
		return infra.NewErrorStack("rbtree root violation, root with parent")
	}
	if root.Color() != Black {
		return infra.NewErrorStack("rbtree root violation, red root")
	}
	return nil
}

func RedViolationValidate[K infra.OrderedKey, V any](tree RBTree[K, V]) error {
	return preorder[K, V](tree.Root(), func(node RBNode[K, V]) error {
		if isRed[K, V](node) && (isRed[K, V](node.Left()) || isRed[K, V](node.Right())) {
			return infra.NewErrorStack("rbtree red violation")
		}
		return nil
	})
}

/*
<X> is a RED node.
[X] is a BLACK node (or NIL).

	        [13]
			/  \
		 <8>    [15]
		 / \    /  \
	  [6] [11] [14] [17]
	  /              /
	<1>            [16]

2-3-4 tree like:

	       <8> --- [13] --- <15>
		  /  \             /    \
		 /    \           /      \
	  <1>-[6][11]      [14] <16>-[17]

Each leaf node to root node black depth are equal.
*/
func BlackViolationValidate[K infra.OrderedKey, V any](tree RBTree[K, V]) error {
	_, err := blackHeight[K, V](tree.Root())
	return err
}

// blackHeight excludes the node itself and counts the nil leaf.
func blackHeight[K infra.OrderedKey, V any](node RBNode[K, V]) (int, error) {
	if node == nil {
		return 0, nil
	}
	l, err := blackHeight[K, V](node.Left())
	if err != nil {
		return 0, err
	}
	r, err := blackHeight[K, V](node.Right())
	if err != nil {
		return 0, err
	}
	if isBlack[K, V](node.Left()) {
		l++
	}
	if isBlack[K, V](node.Right()) {
		r++
	}
	if l != r {
		return 0, infra.NewErrorStack("rbtree black violation")
	}
	return l, nil
}

func OrderViolationValidate[K infra.OrderedKey, V any](tree RBTree[K, V]) error {
	var (
		prev    K
		started bool
	)
	var inorder func(node RBNode[K, V]) error
	inorder = func(node RBNode[K, V]) error {
		if node == nil {
			return nil
		}
		if err := inorder(node.Left()); err != nil {
			return err
		}
		if started && !(prev < node.Key()) {
			return infra.NewErrorStack("rbtree order violation")
		}
		prev, started = node.Key(), true
		return inorder(node.Right())
	}
	return inorder(tree.Root())
}

func LinkViolationValidate[K infra.OrderedKey, V any](tree RBTree[K, V]) error {
	count := int64(0)
	err := preorder[K, V](tree.Root(), func(node RBNode[K, V]) error {
		count++
		for _, child := range []RBNode[K, V]{node.Left(), node.Right()} {
			if child == nil {
				continue
			}
			if p := child.Parent(); p == nil || p.Key() != node.Key() {
				return infra.NewErrorStack("rbtree link violation, parent link mismatch")
			}
		}
		if l := node.Left(); l != nil && l.Direction() != Left {
			return infra.NewErrorStack("rbtree link violation, left direction mismatch")
		}
		if r := node.Right(); r != nil && r.Direction() != Right {
			return infra.NewErrorStack("rbtree link violation, right direction mismatch")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if count != tree.Len() {
		return infra.NewErrorStack("rbtree link violation, reachable nodes mismatch the length")
	}
	return nil
}

// HeightBoundValidate checks height <= 2*log2(n+1).
func HeightBoundValidate[K infra.OrderedKey, V any](tree RBTree[K, V]) error {
	var height func(node RBNode[K, V]) int
	height = func(node RBNode[K, V]) int {
		if node == nil {
			return 0
		}
		return 1 + max(height(node.Left()), height(node.Right()))
	}
	if h := height(tree.Root()); float64(h) > 2*math.Log2(float64(tree.Len()+1)) {
		return infra.NewErrorStack("rbtree height bound violation")
	}
	return nil
}

// Validate runs every rule and combines the violations.
func Validate[K infra.OrderedKey, V any](tree RBTree[K, V]) error {
	return multierr.Combine(
		RootViolationValidate[K, V](tree),
		RedViolationValidate[K, V](tree),
		BlackViolationValidate[K, V](tree),
		OrderViolationValidate[K, V](tree),
		LinkViolationValidate[K, V](tree),
		HeightBoundValidate[K, V](tree),
	)
}
