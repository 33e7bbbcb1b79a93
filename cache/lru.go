package cache

import "time"

// nilIdx marks an absent arena index.
const nilIdx = -1

// node is one entry in the recency list. Links are arena indices rather than
// pointers; the whole structure is one slice plus a key index map.
type node struct {
	key         string
	value       []byte
	fingerprint string
	// expires is the absolute expiry time; the zero value means no expiry.
	expires time.Time
	size    int64
	prev    int
	next    int
}

func (n *node) expired(now time.Time) bool {
	return !n.expires.IsZero() && !n.expires.After(now)
}

// lruStore is a key-addressable store that also maintains recency order.
// The head of the list is the most recently touched entry, the tail the
// eviction candidate. All operations are O(1). The store performs no locking
// and no I/O; the Engine serializes access to it.
type lruStore struct {
	nodes []node
	index map[string]int
	head  int
	tail  int
	// free is the head of the free list, threaded through node.next.
	free int
}

func newLRUStore() *lruStore {
	return &lruStore{
		index: make(map[string]int),
		head:  nilIdx,
		tail:  nilIdx,
		free:  nilIdx,
	}
}

func (s *lruStore) len() int {
	return len(s.index)
}

// lookup returns the arena index for key, if present.
func (s *lruStore) lookup(key string) (int, bool) {
	i, ok := s.index[key]
	return i, ok
}

func (s *lruStore) node(i int) *node {
	return &s.nodes[i]
}

// touch moves the node to the front of the recency list.
func (s *lruStore) touch(i int) {
	if s.head == i {
		return
	}
	s.unlink(i)
	s.linkFront(i)
}

// insertFront creates a node for key and links it at the front. The caller
// must have removed any previous node for the same key.
func (s *lruStore) insertFront(key string, value []byte, fingerprint string, expires time.Time, size int64) int {
	i := s.alloc()
	s.nodes[i] = node{
		key:         key,
		value:       value,
		fingerprint: fingerprint,
		expires:     expires,
		size:        size,
		prev:        nilIdx,
		next:        nilIdx,
	}
	s.index[key] = i
	s.linkFront(i)
	return i
}

// evictBack unlinks and releases the least-recently-used node, returning its
// key and size. ok is false if the store is empty.
func (s *lruStore) evictBack() (key string, size int64, ok bool) {
	if s.tail == nilIdx {
		return "", 0, false
	}
	i := s.tail
	n := &s.nodes[i]
	key, size = n.key, n.size
	s.remove(i)
	return key, size, true
}

// remove unlinks the node regardless of position and returns it to the free
// list, releasing the value bytes.
func (s *lruStore) remove(i int) {
	s.unlink(i)
	delete(s.index, s.nodes[i].key)
	s.nodes[i] = node{prev: nilIdx, next: s.free}
	s.free = i
}

func (s *lruStore) alloc() int {
	if s.free != nilIdx {
		i := s.free
		s.free = s.nodes[i].next
		return i
	}
	s.nodes = append(s.nodes, node{})
	return len(s.nodes) - 1
}

func (s *lruStore) linkFront(i int) {
	n := &s.nodes[i]
	n.prev = nilIdx
	n.next = s.head
	if s.head != nilIdx {
		s.nodes[s.head].prev = i
	}
	s.head = i
	if s.tail == nilIdx {
		s.tail = i
	}
}

func (s *lruStore) unlink(i int) {
	n := &s.nodes[i]
	if n.prev != nilIdx {
		s.nodes[n.prev].next = n.next
	} else if s.head == i {
		s.head = n.next
	}
	if n.next != nilIdx {
		s.nodes[n.next].prev = n.prev
	} else if s.tail == i {
		s.tail = n.prev
	}
	n.prev = nilIdx
	n.next = nilIdx
}
