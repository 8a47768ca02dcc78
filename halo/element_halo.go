package halo

import (
	"fmt"
	"sort"

	"github.com/notargets/gosem/comm"
	"github.com/notargets/gosem/mesh"
)

// ElementHalo exchanges whole-element data with the ranks across partition
// faces. Halo elements get local indices Nlocal, Nlocal+1, ... ordered by rank
// and then by global element id. The plan is not modified after construction;
// exchange buffers belong to the caller.
type ElementHalo struct {
	comm      comm.Comm
	Nlocal    int
	Nhalo     int
	Neighbors []int
	// SendElements[r] are the local elements rank r needs, by global id
	SendElements map[int][]int
	// RecvGlobalIDs[r] are the global ids of the elements received from r
	RecvGlobalIDs map[int][]int
	recvStart     map[int]int
	haloIndex     map[int]int
}

// Buffers are the send and receive space of Exchange for one data width
type Buffers struct {
	width      int
	send, recv map[int][]float64
}

// NewElementHalo builds the halo plan of partition p. Send and receive lists are
// both sorted by global id, so they match without a handshake.
func NewElementHalo(c comm.Comm, p *mesh.Partition) (h *ElementHalo) {
	h = &ElementHalo{
		comm:          c,
		Nlocal:        p.NumElements(),
		Neighbors:     p.NeighborRanks(),
		SendElements:  make(map[int][]int),
		RecvGlobalIDs: make(map[int][]int),
		recvStart:     make(map[int]int),
		haloIndex:     make(map[int]int),
	}
	sendSet := make(map[int]map[int]bool)
	recvSet := make(map[int]map[int]bool)
	for _, r := range h.Neighbors {
		sendSet[r], recvSet[r] = make(map[int]bool), make(map[int]bool)
	}
	for kl, links := range p.Links {
		for _, l := range links {
			if l.Kind == mesh.RemoteFace {
				sendSet[l.Rank][kl] = true
				recvSet[l.Rank][l.Elem] = true
			}
		}
	}
	for _, r := range h.Neighbors {
		for kl := range sendSet[r] {
			h.SendElements[r] = append(h.SendElements[r], kl)
		}
		// Local order follows global id order
		sort.Ints(h.SendElements[r])
		for gid := range recvSet[r] {
			h.RecvGlobalIDs[r] = append(h.RecvGlobalIDs[r], gid)
		}
		sort.Ints(h.RecvGlobalIDs[r])
		h.recvStart[r] = h.Nlocal + h.Nhalo
		for i, gid := range h.RecvGlobalIDs[r] {
			h.haloIndex[gid] = h.Nlocal + h.Nhalo + i
		}
		h.Nhalo += len(h.RecvGlobalIDs[r])
	}
	return
}

// Index returns the element index of a remote neighbor given its global id
func (h *ElementHalo) Index(globalID int) int {
	idx, ok := h.haloIndex[globalID]
	if !ok {
		panic(fmt.Errorf("element %d is not in the halo of rank %d", globalID, h.comm.Rank()))
	}
	return idx
}

// ExchangeElements fills the halo part of q, which holds width values per
// element for Nlocal+Nhalo elements, from the owning ranks.
func ExchangeElements[T any](h *ElementHalo, q []T, width int) (err error) {
	send := make(map[int][]T, len(h.Neighbors))
	recv := make(map[int][]T, len(h.Neighbors))
	for _, r := range h.Neighbors {
		send[r] = packElements(h.SendElements[r], q, width, make([]T, 0, len(h.SendElements[r])*width))
		recv[r] = make([]T, len(h.RecvGlobalIDs[r])*width)
	}
	if err = comm.ExchangeInto(h.comm, send, recv); err != nil {
		return fmt.Errorf("element halo exchange: %w", err)
	}
	for _, r := range h.Neighbors {
		copy(q[h.recvStart[r]*width:], recv[r])
	}
	return
}

func packElements[T any](elems []int, q []T, width int, buf []T) []T {
	for _, k := range elems {
		buf = append(buf, q[k*width:(k+1)*width]...)
	}
	return buf
}

// NewBuffers allocates exchange space for width values per element
func (h *ElementHalo) NewBuffers(width int) (b *Buffers) {
	b = &Buffers{
		width: width,
		send:  make(map[int][]float64, len(h.Neighbors)),
		recv:  make(map[int][]float64, len(h.Neighbors)),
	}
	for _, r := range h.Neighbors {
		b.send[r] = make([]float64, 0, len(h.SendElements[r])*width)
		b.recv[r] = make([]float64, len(h.RecvGlobalIDs[r])*width)
	}
	return
}

// Exchange is ExchangeElements for float data, through buffers from NewBuffers
func (h *ElementHalo) Exchange(q []float64, b *Buffers) (err error) {
	width := b.width
	if len(q) != (h.Nlocal+h.Nhalo)*width {
		panic(fmt.Errorf("halo exchange of %d values, need %d", len(q), (h.Nlocal+h.Nhalo)*width))
	}
	if len(h.Neighbors) == 0 {
		return
	}
	for _, r := range h.Neighbors {
		b.send[r] = packElements(h.SendElements[r], q, width, b.send[r][:0])
	}
	if err = comm.ExchangeInto(h.comm, b.send, b.recv); err != nil {
		return fmt.Errorf("element halo exchange: %w", err)
	}
	for _, r := range h.Neighbors {
		copy(q[h.recvStart[r]*width:], b.recv[r])
	}
	return
}
