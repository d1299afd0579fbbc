package transport

import "sync"

// cyclicBarrier is a reusable barrier for exactly n goroutines,
// implemented with a generation counter so it can be awaited
// repeatedly (once per level/phase boundary, spec.md §5).
type cyclicBarrier struct {
	n int

	mu      sync.Mutex
	count   int
	genDone chan struct{}
}

func newCyclicBarrier(n int) *cyclicBarrier {
	return &cyclicBarrier{n: n, genDone: make(chan struct{})}
}

func (b *cyclicBarrier) wait() {
	b.mu.Lock()
	done := b.genDone
	b.count++
	if b.count == b.n {
		b.count = 0
		b.genDone = make(chan struct{})
		b.mu.Unlock()
		close(done)
		return
	}
	b.mu.Unlock()
	<-done
}

// exchange implements Allgather: each of n ranks contributes once per
// round; once all n contributions are in, every caller receives the
// full, rank-ordered slice. A generation counter lets the same
// exchange be reused across many calls without cross-round races.
type exchange struct {
	n int

	mu     sync.Mutex
	buf    [][]byte
	count  int
	result [][]byte
	done   chan struct{}
}

func newExchange(n int) *exchange {
	return &exchange{n: n, buf: make([][]byte, n), done: make(chan struct{})}
}

func (e *exchange) do(rank int, data []byte) [][]byte {
	e.mu.Lock()
	e.buf[rank] = data
	e.count++
	if e.count == e.n {
		out := make([][]byte, e.n)
		copy(out, e.buf)
		e.result = out
		e.buf = make([][]byte, e.n)
		e.count = 0
		done := e.done
		e.done = make(chan struct{})
		e.mu.Unlock()
		close(done)
		return out
	}
	done := e.done
	e.mu.Unlock()
	<-done

	e.mu.Lock()
	out := e.result
	e.mu.Unlock()
	return out
}

// exchangeV implements Alltoallv over n ranks: each rank contributes n
// payloads (one per destination); once all have contributed, every
// rank receives the payloads addressed to it, ordered by source rank.
type exchangeV struct {
	n int

	mu      sync.Mutex
	inbound [][][]byte // inbound[dest][src]
	count   int
	result  [][][]byte
	done    chan struct{}
}

func newExchangeV(n int) *exchangeV {
	return &exchangeV{n: n, inbound: makeInbound(n), done: make(chan struct{})}
}

func makeInbound(n int) [][][]byte {
	in := make([][][]byte, n)
	for i := range in {
		in[i] = make([][]byte, n)
	}
	return in
}

func (e *exchangeV) do(rank int, perDest [][]byte) [][]byte {
	e.mu.Lock()
	for dest, payload := range perDest {
		e.inbound[dest][rank] = payload
	}
	e.count++
	if e.count == e.n {
		e.result = e.inbound
		e.inbound = makeInbound(e.n)
		e.count = 0
		done := e.done
		e.done = make(chan struct{})
		e.mu.Unlock()
		close(done)
		e.mu.Lock()
		out := e.result[rank]
		e.mu.Unlock()
		return out
	}
	done := e.done
	e.mu.Unlock()
	<-done

	e.mu.Lock()
	out := e.result[rank]
	e.mu.Unlock()
	return out
}

// reduceMin implements Allreduce(min, int).
type reduceMin struct {
	n int

	mu     sync.Mutex
	min    int
	count  int
	result int
	done   chan struct{}
}

func newReduceMin(n int) *reduceMin {
	return &reduceMin{n: n, done: make(chan struct{})}
}

func (r *reduceMin) do(rank int, v int) int {
	r.mu.Lock()
	if r.count == 0 || v < r.min {
		r.min = v
	}
	r.count++
	if r.count == r.n {
		r.result = r.min
		r.count = 0
		done := r.done
		r.done = make(chan struct{})
		r.mu.Unlock()
		close(done)
		return r.result
	}
	done := r.done
	r.mu.Unlock()
	<-done

	r.mu.Lock()
	res := r.result
	r.mu.Unlock()
	return res
}
