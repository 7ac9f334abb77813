package cache

// node represents an element in the doubly linked recency list.
type node[T any] struct {
	data T
	prev *node[T]
	next *node[T]
}

// recencyList is a minimal doubly linked list ordering keys most- to
// least-recently used.
type recencyList[T any] struct {
	head *node[T]
	tail *node[T]
	size int
}

func newRecencyList[T any]() *recencyList[T] {
	return &recencyList[T]{}
}

func (l *recencyList[T]) count() int {
	return l.size
}

// addToHead inserts a new node with data at the head and returns it.
func (l *recencyList[T]) addToHead(data T) *node[T] {
	n := &node[T]{data: data, next: l.head}
	if l.head != nil {
		l.head.prev = n
	} else {
		l.tail = n
	}
	l.head = n
	l.size++
	return n
}

// removeTail removes and returns the least recently used entry's data.
func (l *recencyList[T]) removeTail() (T, bool) {
	var d T
	if l.head == nil {
		return d, false
	}
	d = l.tail.data
	if l.head == l.tail {
		l.head = nil
		l.tail = nil
	} else {
		l.tail = l.tail.prev
		l.tail.next = nil
	}
	l.size--
	return d, true
}

// unlink unchains n from the list.
func (l *recencyList[T]) unlink(n *node[T]) {
	if n == nil {
		return
	}
	if n == l.head {
		l.head = n.next
	}
	if n == l.tail {
		l.tail = n.prev
	}
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	n.next = nil
	n.prev = nil
	l.size--
}
