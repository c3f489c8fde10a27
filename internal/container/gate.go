package container

// Gate serialises users of a single transport. Only one holder may drive the
// container at a time; later callers queue in FIFO order. A Gate is confined to
// the main loop and is not safe for concurrent use.
type Gate struct {
	busy    bool
	waiting []func(release func())
}

// Acquire runs fn immediately if the gate is free, otherwise once every earlier
// holder has released. fn receives a release function; calling it more than
// once has no further effect.
func (g *Gate) Acquire(fn func(release func())) {
	if g.busy {
		g.waiting = append(g.waiting, fn)
		return
	}
	g.busy = true
	fn(g.releaser())
}

// Busy reports whether a holder is active.
func (g *Gate) Busy() bool {
	return g.busy
}

// Pending returns the number of queued holders.
func (g *Gate) Pending() int {
	return len(g.waiting)
}

func (g *Gate) releaser() func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true
		g.next()
	}
}

func (g *Gate) next() {
	if len(g.waiting) == 0 {
		g.busy = false
		return
	}
	fn := g.waiting[0]
	g.waiting[0] = nil
	g.waiting = g.waiting[1:]
	fn(g.releaser())
}
