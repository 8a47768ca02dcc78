package comm

import (
	"fmt"
	"sort"
)

type Number interface {
	~int | ~int32 | ~int64 | ~float64
}

func sortedRanks[V any](m map[int]V) (ranks []int) {
	ranks = make([]int, 0, len(m))
	for r := range m {
		ranks = append(ranks, r)
	}
	sort.Ints(ranks)
	return
}

// ExchangeInto sends send[r] to each rank r and fills recv[r] from each rank r.
// Every received message must have exactly len(recv[r]) elements. Payloads are
// copied on send, so the caller may reuse its buffers as soon as this returns.
func ExchangeInto[T any](c Comm, send map[int][]T, recv map[int][]T) (err error) {
	for _, r := range sortedRanks(send) {
		msg := make([]T, len(send[r]))
		copy(msg, send[r])
		if err = c.Send(r, msg); err != nil {
			return
		}
	}
	for _, r := range sortedRanks(recv) {
		var raw any
		if raw, err = c.Recv(r); err != nil {
			return
		}
		msg, ok := raw.([]T)
		if !ok {
			return fmt.Errorf("%w: rank %d received %T from rank %d, want %T",
				ErrShortMessage, c.Rank(), raw, r, recv[r])
		}
		if len(msg) != len(recv[r]) {
			return fmt.Errorf("%w: rank %d received %d values from rank %d, want %d",
				ErrShortMessage, c.Rank(), len(msg), r, len(recv[r]))
		}
		copy(recv[r], msg)
	}
	return
}

// Exchange is ExchangeInto with freshly allocated receive buffers of
// recvLen[r] elements.
func Exchange[T any](c Comm, send map[int][]T, recvLen map[int]int) (recv map[int][]T, err error) {
	recv = make(map[int][]T, len(recvLen))
	for r, n := range recvLen {
		recv[r] = make([]T, n)
	}
	if err = ExchangeInto(c, send, recv); err != nil {
		recv = nil
	}
	return
}

// ExchangeVar exchanges messages whose length the receiver does not know in
// advance.
func ExchangeVar[T any](c Comm, send map[int][]T, from []int) (recv map[int][]T, err error) {
	for _, r := range sortedRanks(send) {
		msg := make([]T, len(send[r]))
		copy(msg, send[r])
		if err = c.Send(r, msg); err != nil {
			return
		}
	}
	from = append([]int{}, from...)
	sort.Ints(from)
	recv = make(map[int][]T, len(from))
	for _, r := range from {
		var raw any
		if raw, err = c.Recv(r); err != nil {
			return nil, err
		}
		msg, ok := raw.([]T)
		if !ok {
			return nil, fmt.Errorf("%w: rank %d received %T from rank %d",
				ErrShortMessage, c.Rank(), raw, r)
		}
		recv[r] = msg
	}
	return
}

// AllGather returns the value contributed by every rank, indexed by rank
func AllGather[T any](c Comm, v T) (all []T, err error) {
	all = make([]T, c.Size())
	all[c.Rank()] = v
	for r := 0; r < c.Size(); r++ {
		if r != c.Rank() {
			if err = c.Send(r, v); err != nil {
				return nil, err
			}
		}
	}
	for r := 0; r < c.Size(); r++ {
		if r == c.Rank() {
			continue
		}
		raw, e := c.Recv(r)
		if e != nil {
			return nil, e
		}
		val, ok := raw.(T)
		if !ok {
			return nil, fmt.Errorf("%w: rank %d gathered %T from rank %d",
				ErrShortMessage, c.Rank(), raw, r)
		}
		all[r] = val
	}
	return
}

// AllReduce folds the contributions of all ranks with op in rank order, so every
// rank computes the identical result.
func AllReduce[T any](c Comm, v T, op func(a, b T) T) (res T, err error) {
	all, err := AllGather(c, v)
	if err != nil {
		return
	}
	res = all[0]
	for _, val := range all[1:] {
		res = op(res, val)
	}
	return
}

func AllSum[T Number](c Comm, v T) (T, error) {
	return AllReduce(c, v, func(a, b T) T { return a + b })
}

func AllMax[T Number](c Comm, v T) (T, error) {
	return AllReduce(c, v, func(a, b T) T {
		if b > a {
			return b
		}
		return a
	})
}

func AllMin[T Number](c Comm, v T) (T, error) {
	return AllReduce(c, v, func(a, b T) T {
		if b < a {
			return b
		}
		return a
	})
}

// Barrier returns once every rank has entered it
func Barrier(c Comm) error {
	_, err := AllGather(c, struct{}{})
	return err
}
