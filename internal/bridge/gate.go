package bridge

// Gate tracks the newest observation timestamp published so far and
// suppresses republication when the provider has nothing newer. The zero
// value means no observation yet. The gate is owned by the Bridge and only
// mutated under its lock; it is not package-level state.
type Gate struct {
	last int64
}

// Observe reports whether dt is strictly newer than anything seen so far,
// advancing the gate when it is. Equal timestamps count as stale: a
// provider returning a cached response is not new data. A timestamp older
// than the stored value never moves the gate backward.
func (g *Gate) Observe(dt int64) bool {
	if dt > g.last {
		g.last = dt
		return true
	}
	return false
}

// Last returns the newest observation timestamp seen, 0 if none.
func (g *Gate) Last() int64 {
	return g.last
}
