package engine

// event is one unit of work for the single-writer loop. All engine
// state mutates on that loop; broker calls run on worker goroutines
// and re-enter as acks.
type event interface {
	apply(e *Engine)
}

// ackEvent carries the outcome of a background broker call back onto
// the writer loop.
type ackEvent struct {
	fn func(*Engine)
}

func (a ackEvent) apply(e *Engine) {
	a.fn(e)
}

// commandEvent is a user command awaiting a synchronous result.
type commandEvent struct {
	fn    func(*Engine) error
	reply chan error
}

func (c commandEvent) apply(e *Engine) {
	c.reply <- c.fn(e)
}

// trigger is an engine-held price watch for a pending order. Touch or
// cross both fire: the comparison is at-or-beyond, evaluated on tick
// arrival.
type trigger struct {
	orderID string
	token   uint32
	price   float64
	above   bool // fire at or above when true, at or below otherwise
}

func (t *trigger) hit(ltp float64) bool {
	if t.above {
		return ltp >= t.price
	}
	return ltp <= t.price
}
