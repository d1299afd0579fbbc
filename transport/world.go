// Package transport simulates the message-passing substrate spec.md
// §5/§6 assumes: P ranks, each a single logical thread of control,
// communicating by point-to-point send/recv and collectives
// (Allgather, Alltoallv, Allreduce, Sendrecv, Barrier). No library in
// the retrieved pack offers distributed messaging, so this is a
// deliberately minimal in-process rendition — P goroutines with
// per-rank mailboxes — written against a small Comm interface so a
// real MPI binding could satisfy it later (spec.md §9 "Global state").
package transport

import (
	"fmt"
	"sync"
)

// Rank identifies a process, 0..Size-1.
type Rank int

// Comm is the per-rank handle to the message-passing substrate. Every
// method blocks the calling rank's goroutine until its part of the
// collective or exchange completes; no method returns early (spec.md
// §5 "Suspension points").
type Comm interface {
	Rank() int
	Size() int

	// Send delivers data to rank `to` tagged tag; Recv blocks until a
	// matching Send has arrived.
	Send(to int, tag int, data []byte)
	Recv(from int, tag int) []byte

	// Sendrecv exchanges data with a single peer in one round, used by
	// the unit-level pop-pass (spec.md §4.7 step 5).
	Sendrecv(to int, sendTag int, sendData []byte, from int, recvTag int) []byte

	// Barrier blocks until every rank has called Barrier.
	Barrier()

	// Allgather blocks until every rank has contributed its data, then
	// returns all contributions ordered by rank.
	Allgather(data []byte) [][]byte

	// Alltoallv blocks until every rank has contributed its per-destination
	// payloads, then returns, for this rank, the payloads sent to it by
	// every other rank, ordered by source rank.
	Alltoallv(perDest [][]byte) [][]byte

	// AllreduceMin returns the minimum of all ranks' contributed ints.
	AllreduceMin(v int) int
}

// World is a fixed-size group of simulated ranks sharing one process.
type World struct {
	size int

	mu      sync.Mutex
	inboxes map[inboxKey]chan []byte

	barrier *cyclicBarrier

	allgather *exchange
	alltoall  *exchangeV
	allreduce *reduceMin
}

type inboxKey struct {
	from, to, tag int
}

// NewWorld creates a World of the given size. Use Run to launch each
// rank's logical thread of control.
func NewWorld(size int) *World {
	if size <= 0 {
		panic("transport: world size must be positive")
	}
	return &World{
		size:      size,
		inboxes:   make(map[inboxKey]chan []byte),
		barrier:   newCyclicBarrier(size),
		allgather: newExchange(size),
		alltoall:  newExchangeV(size),
		allreduce: newReduceMin(size),
	}
}

// Run launches fn once per rank as a goroutine and blocks until every
// rank's fn returns. This is the only place P concurrent threads of
// control exist; each fn body itself runs single-threaded per spec.md §5.
func (w *World) Run(fn func(c Comm)) {
	var wg sync.WaitGroup
	wg.Add(w.size)
	for r := 0; r < w.size; r++ {
		r := r
		go func() {
			defer wg.Done()
			fn(&comm{rank: r, world: w})
		}()
	}
	wg.Wait()
}

type comm struct {
	rank  int
	world *World
}

func (c *comm) Rank() int { return c.rank }
func (c *comm) Size() int { return c.world.size }

func (c *comm) inbox(from, to, tag int) chan []byte {
	k := inboxKey{from, to, tag}
	w := c.world
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.inboxes[k]
	if !ok {
		ch = make(chan []byte, 1)
		w.inboxes[k] = ch
	}
	return ch
}

func (c *comm) Send(to int, tag int, data []byte) {
	if to < 0 || to >= c.world.size {
		panic(fmt.Sprintf("transport: send to out-of-range rank %d", to))
	}
	c.inbox(c.rank, to, tag) <- data
}

func (c *comm) Recv(from int, tag int) []byte {
	if from < 0 || from >= c.world.size {
		panic(fmt.Sprintf("transport: recv from out-of-range rank %d", from))
	}
	return <-c.inbox(from, c.rank, tag)
}

func (c *comm) Sendrecv(to int, sendTag int, sendData []byte, from int, recvTag int) []byte {
	// Sends are buffered (capacity 1 per mailbox) so issuing the send
	// before the blocking receive cannot deadlock a ring exchange.
	c.Send(to, sendTag, sendData)
	return c.Recv(from, recvTag)
}

func (c *comm) Barrier() {
	c.world.barrier.wait()
}

func (c *comm) Allgather(data []byte) [][]byte {
	return c.world.allgather.do(c.rank, data)
}

func (c *comm) Alltoallv(perDest [][]byte) [][]byte {
	if len(perDest) != c.world.size {
		panic("transport: Alltoallv requires one payload per rank")
	}
	return c.world.alltoall.do(c.rank, perDest)
}

func (c *comm) AllreduceMin(v int) int {
	return c.world.allreduce.do(c.rank, v)
}
