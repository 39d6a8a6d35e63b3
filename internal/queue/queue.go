package queue

import (
	"sync"

	"golang.org/x/sys/unix"
)

// MessageQueue is a multi-producer, single-consumer queue of *Message,
// with an OS-visible wait handle so a consumer thread blocked in
// poll/select on other file descriptors (a device's USB transfer
// completions) can be woken by a Push from any other thread.
//
// The wake mechanism is a self-pipe: Push writes one byte if the queue
// was empty, Drain clears all pending wake bytes. This mirrors the
// pattern used for cross-thread notification in event-loop designs
// without requiring the consumer to poll.
type MessageQueue struct {
	mu       sync.Mutex
	head     *Message
	tail     *Message
	len      int
	closed   bool
	readFd   int
	writeFd  int
}

// NewMessageQueue allocates a queue and its wake pipe.
func NewMessageQueue() (*MessageQueue, error) {
	fds, err := unix.Pipe2(unix.O_NONBLOCK | unix.O_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &MessageQueue{readFd: fds[0], writeFd: fds[1]}, nil
}

// WaitFd returns the file descriptor a consumer should add to its
// poll/select set; it becomes readable when the queue transitions from
// empty to non-empty.
func (q *MessageQueue) WaitFd() int { return q.readFd }

// Push enqueues msg, waking the consumer if the queue was empty.
// Safe to call from any thread; returns false if the queue is closed.
func (q *MessageQueue) Push(msg *Message) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	wasEmpty := q.tail == nil
	msg.next = nil
	if wasEmpty {
		q.head = msg
	} else {
		q.tail.next = msg
	}
	q.tail = msg
	q.len++
	q.mu.Unlock()

	if wasEmpty {
		q.wake()
	}
	return true
}

func (q *MessageQueue) wake() {
	var b [1]byte
	for {
		_, err := unix.Write(q.writeFd, b[:])
		if err == unix.EINTR {
			continue
		}
		return
	}
}

// Pop removes and returns the head message, or nil if the queue is empty.
func (q *MessageQueue) Pop() *Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	m := q.head
	if m == nil {
		return nil
	}
	q.head = m.next
	if q.head == nil {
		q.tail = nil
	}
	m.next = nil
	q.len--
	return m
}

// Drain pops every pending message into a slice, also clearing the wake
// pipe in one syscall; the consumer calls this once per wakeup instead
// of popping one at a time.
func (q *MessageQueue) Drain() []*Message {
	q.drainWakeByte()

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == nil {
		return nil
	}
	out := make([]*Message, 0, q.len)
	for m := q.head; m != nil; {
		next := m.next
		m.next = nil
		out = append(out, m)
		m = next
	}
	q.head = nil
	q.tail = nil
	q.len = 0
	return out
}

func (q *MessageQueue) drainWakeByte() {
	var buf [64]byte
	for {
		n, err := unix.Read(q.readFd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if n <= 0 || err != nil {
			return
		}
	}
}

// Len reports the current queue depth; used for metrics sampling.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.len
}

// Close marks the queue closed; further Push calls fail. Pending
// messages remain poppable by the consumer so a `finalize` sentinel
// already enqueued is still delivered.
func (q *MessageQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	var errR, errW error
	if q.readFd >= 0 {
		errR = unix.Close(q.readFd)
	}
	if q.writeFd >= 0 {
		errW = unix.Close(q.writeFd)
	}
	if errR != nil {
		return errR
	}
	return errW
}
