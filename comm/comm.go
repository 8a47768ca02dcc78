package comm

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrShortMessage = errors.New("message length mismatch")
	ErrAborted      = errors.New("rank world aborted")
	ErrBadRank      = errors.New("rank out of range")
)

// Comm is the communicator of one rank. Messages between a pair of ranks are
// delivered in the order they were sent.
type Comm interface {
	Rank() int
	Size() int
	// Send queues msg for rank to. It blocks only when the pair's queue is full.
	Send(to int, msg any) error
	// Recv blocks until the next message from rank from arrives or the world is
	// aborted.
	Recv(from int) (any, error)
	// Abort fails every pending and future communication in the world
	Abort(err error)
}

// World is a set of in-process ranks connected by one buffered channel per
// ordered pair of ranks.
type World struct {
	size      int
	boxes     [][]chan any // [from][to]
	done      chan struct{}
	abortOnce sync.Once
	abortErr  error
}

// QueueDepth is the number of messages that can be in flight between a pair of
// ranks before Send blocks.
const QueueDepth = 8

func NewWorld(size int) (w *World) {
	if size < 1 {
		size = 1
	}
	w = &World{
		size:  size,
		boxes: make([][]chan any, size),
		done:  make(chan struct{}),
	}
	for from := range w.boxes {
		w.boxes[from] = make([]chan any, size)
		for to := range w.boxes[from] {
			w.boxes[from][to] = make(chan any, QueueDepth)
		}
	}
	return
}

func (w *World) Size() int { return w.size }

// Comm returns the communicator of rank r
func (w *World) Comm(r int) Comm {
	if r < 0 || r >= w.size {
		panic(fmt.Errorf("%w: %d of %d", ErrBadRank, r, w.size))
	}
	return &rankComm{world: w, rank: r}
}

func (w *World) abort(err error) {
	w.abortOnce.Do(func() {
		w.abortErr = err
		close(w.done)
	})
}

func (w *World) aborted() error {
	return fmt.Errorf("%w: %v", ErrAborted, w.abortErr)
}

type rankComm struct {
	world *World
	rank  int
}

func (c *rankComm) Rank() int       { return c.rank }
func (c *rankComm) Size() int       { return c.world.size }
func (c *rankComm) Abort(err error) { c.world.abort(err) }

func (c *rankComm) Send(to int, msg any) error {
	if to < 0 || to >= c.world.size {
		return fmt.Errorf("%w: send from %d to %d", ErrBadRank, c.rank, to)
	}
	select {
	case <-c.world.done:
		return c.world.aborted()
	default:
	}
	select {
	case c.world.boxes[c.rank][to] <- msg:
		return nil
	case <-c.world.done:
		return c.world.aborted()
	}
}

func (c *rankComm) Recv(from int) (any, error) {
	if from < 0 || from >= c.world.size {
		return nil, fmt.Errorf("%w: receive on %d from %d", ErrBadRank, c.rank, from)
	}
	select {
	case msg := <-c.world.boxes[from][c.rank]:
		return msg, nil
	case <-c.world.done:
		return nil, c.world.aborted()
	}
}

// Run executes f on every rank of a new world of the given size and waits for
// all of them. The first rank to fail aborts the world, so ranks blocked in Recv
// return ErrAborted instead of hanging. The returned error is the first failure.
func Run(size int, f func(c Comm) error) (err error) {
	var (
		w  = NewWorld(size)
		wg sync.WaitGroup
	)
	for r := 0; r < w.size; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					w.abort(fmt.Errorf("rank %d: panic: %v", r, p))
				}
			}()
			if e := f(w.Comm(r)); e != nil {
				w.abort(fmt.Errorf("rank %d: %w", r, e))
			}
		}(r)
	}
	wg.Wait()
	return w.abortErr
}
