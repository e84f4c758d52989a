// avl.go: order-statistic AVL tree over insertion sequence numbers
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

// orderStatTree is an AVL tree keyed by monotonically increasing sequence
// numbers. Every node caches its subtree size, giving O(log n) rank queries
// (how many live keys are newer than a given sequence number), delete by
// key, and LRU extraction (minimum sequence number).
type orderStatTree struct {
	root  *avlNode
	count int
}

type avlNode struct {
	sn      uint64
	keyHash uint64
	left    *avlNode
	right   *avlNode
	height  int8
	size    uint32
}

func nodeHeight(n *avlNode) int8 {
	if n == nil {
		return 0
	}
	return n.height
}

func nodeSize(n *avlNode) uint32 {
	if n == nil {
		return 0
	}
	return n.size
}

func (n *avlNode) update() {
	lh, rh := nodeHeight(n.left), nodeHeight(n.right)
	if lh > rh {
		n.height = lh + 1
	} else {
		n.height = rh + 1
	}
	n.size = 1 + nodeSize(n.left) + nodeSize(n.right)
}

func (n *avlNode) balanceFactor() int {
	return int(nodeHeight(n.left)) - int(nodeHeight(n.right))
}

func rotateRight(y *avlNode) *avlNode {
	x := y.left
	y.left = x.right
	x.right = y
	y.update()
	x.update()
	return x
}

func rotateLeft(x *avlNode) *avlNode {
	y := x.right
	x.right = y.left
	y.left = x
	x.update()
	y.update()
	return y
}

func rebalance(n *avlNode) *avlNode {
	n.update()
	bf := n.balanceFactor()
	if bf > 1 {
		if n.left.balanceFactor() < 0 {
			n.left = rotateLeft(n.left)
		}
		return rotateRight(n)
	}
	if bf < -1 {
		if n.right.balanceFactor() > 0 {
			n.right = rotateRight(n.right)
		}
		return rotateLeft(n)
	}
	return n
}

// Insert adds a node for sn. Sequence numbers are unique by construction
// (a fresh one is drawn per access), so no duplicate handling is needed.
func (t *orderStatTree) Insert(sn, keyHash uint64) {
	t.root = insertNode(t.root, sn, keyHash)
	t.count++
}

func insertNode(n *avlNode, sn, keyHash uint64) *avlNode {
	if n == nil {
		return &avlNode{sn: sn, keyHash: keyHash, height: 1, size: 1}
	}
	if sn < n.sn {
		n.left = insertNode(n.left, sn, keyHash)
	} else {
		n.right = insertNode(n.right, sn, keyHash)
	}
	return rebalance(n)
}

// Delete removes the node keyed sn, reporting whether it was present.
func (t *orderStatTree) Delete(sn uint64) bool {
	var deleted bool
	t.root, deleted = deleteNode(t.root, sn)
	if deleted {
		t.count--
	}
	return deleted
}

func deleteNode(n *avlNode, sn uint64) (*avlNode, bool) {
	if n == nil {
		return nil, false
	}
	var deleted bool
	switch {
	case sn < n.sn:
		n.left, deleted = deleteNode(n.left, sn)
	case sn > n.sn:
		n.right, deleted = deleteNode(n.right, sn)
	default:
		deleted = true
		if n.left == nil {
			return n.right, true
		}
		if n.right == nil {
			return n.left, true
		}
		succ := n.right
		for succ.left != nil {
			succ = succ.left
		}
		n.sn = succ.sn
		n.keyHash = succ.keyHash
		n.right, _ = deleteNode(n.right, succ.sn)
	}
	if !deleted {
		return n, false
	}
	return rebalance(n), true
}

// RankFrom returns the number of live keys with sequence number >= sn,
// i.e. the right-subtree-plus-self count along the search path. For a hit
// this is the reuse distance: the key's own node plus everything newer.
func (t *orderStatTree) RankFrom(sn uint64) uint64 {
	var rank uint64
	for n := t.root; n != nil; {
		switch {
		case sn < n.sn:
			rank += uint64(nodeSize(n.right)) + 1
			n = n.left
		case sn > n.sn:
			n = n.right
		default:
			return rank + uint64(nodeSize(n.right)) + 1
		}
	}
	return rank
}

// Min returns the oldest live node, the LRU candidate.
func (t *orderStatTree) Min() (sn, keyHash uint64, ok bool) {
	n := t.root
	if n == nil {
		return 0, 0, false
	}
	for n.left != nil {
		n = n.left
	}
	return n.sn, n.keyHash, true
}

// Size returns the number of live nodes.
func (t *orderStatTree) Size() int {
	return t.count
}
