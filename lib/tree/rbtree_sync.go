package tree

import (
	"sync"

	"github.com/benz9527/xrbtree/lib/infra"
)

// SyncRBTree serializes the writers against each other and against the
// in-flight readers. A blocked writer holds the new readers back.
// No node handle escapes the lock, the methods work on keys and values.
type SyncRBTree[K infra.OrderedKey, V any] interface {
	Len() int64
	Get(key K) (V, bool)
	Insert(key K, val V) error
	Replace(key K, val V) error
	Remove(key K) (V, error)
	RemoveMin() (K, V, error)
	Min() (K, V, bool)
	Max() (K, V, bool)
	Keys() []K
	Foreach(action func(idx int64, color RBColor, key K, val V) bool)
	Validate() error
	Release()
}

type syncRBTree[K infra.OrderedKey, V any] struct {
	lock sync.RWMutex
	tree RBTree[K, V]
}

func (t *syncRBTree[K, V]) Len() int64 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.tree.Len()
}

func (t *syncRBTree[K, V]) Get(key K) (val V, exists bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	node, err := t.tree.Search(key)
	if err != nil {
		return val, false
	}
	return node.Val(), true
}

func (t *syncRBTree[K, V]) Insert(key K, val V) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	_, err := t.tree.Insert(key, val)
	return err
}

// Replace updates the value of a present key.
func (t *syncRBTree[K, V]) Replace(key K, val V) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	node, err := t.tree.Search(key)
	if err != nil {
		return err
	}
	_, err = t.tree.Replace(node, key, val)
	return err
}

func (t *syncRBTree[K, V]) Remove(key K) (val V, err error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	node, err := t.tree.Remove(key)
	if err != nil {
		return val, err
	}
	return node.Val(), nil
}

func (t *syncRBTree[K, V]) RemoveMin() (key K, val V, err error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	node, err := t.tree.RemoveMin()
	if err != nil {
		return key, val, err
	}
	return node.Key(), node.Val(), nil
}

func (t *syncRBTree[K, V]) Min() (key K, val V, exists bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	if node := t.tree.First(); node != nil {
		return node.Key(), node.Val(), true
	}
	return key, val, false
}

func (t *syncRBTree[K, V]) Max() (key K, val V, exists bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	if node := t.tree.Last(); node != nil {
		return node.Key(), node.Val(), true
	}
	return key, val, false
}

func (t *syncRBTree[K, V]) Keys() []K {
	t.lock.RLock()
	defer t.lock.RUnlock()
	keys := make([]K, 0, t.tree.Len())
	for key := range t.tree.All() {
		keys = append(keys, key)
	}
	return keys
}

// Foreach holds the read lock during the whole traversal, the action
// must not call back into the tree for writing.
func (t *syncRBTree[K, V]) Foreach(action func(idx int64, color RBColor, key K, val V) bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	t.tree.Foreach(action)
}

func (t *syncRBTree[K, V]) Validate() error {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return Validate[K, V](t.tree)
}

func (t *syncRBTree[K, V]) Release() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.tree.Release()
}

func NewSyncRBTree[K infra.OrderedKey, V any](opts ...RBTreeOpt[K, V]) SyncRBTree[K, V] {
	return &syncRBTree[K, V]{
		tree: NewRBTree[K, V](opts...),
	}
}
