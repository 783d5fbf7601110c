package radio

import "context"

// Records hands decoded records from a receive callback to the unit
// cycle. Put may be called concurrently with Take but only from a
// single producer.
type Records interface {
	// Put hands over rec, it returns false if rec was not stored.
	Put(ctx context.Context, rec interface{}) bool
	// Take removes and returns the next record, if any. It never blocks.
	Take() (interface{}, bool)
	// Len returns the number of records not taken yet.
	Len() int
}

// Slot hands the latest complete record from a receive callback to the
// unit cycle. Publish replaces any record not yet taken; Take consumes
// it. Records are handed over whole, so a reader never sees a record
// while it is being written.
type Slot struct {
	ch chan interface{}
}

// NewSlot creates an empty Slot.
func NewSlot() *Slot {
	return &Slot{ch: make(chan interface{}, 1)}
}

// Publish stores rec, discarding an older record not taken yet.
// It never blocks; it must be called from a single producer.
func (s *Slot) Publish(rec interface{}) {
	for {
		select {
		case s.ch <- rec:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Put implements Records.
func (s *Slot) Put(_ context.Context, rec interface{}) bool {
	s.Publish(rec)
	return true
}

// Take removes and returns the record, if any.
func (s *Slot) Take() (interface{}, bool) {
	select {
	case rec := <-s.ch:
		return rec, true
	default:
		return nil, false
	}
}

// Len implements Records.
func (s *Slot) Len() int {
	return len(s.ch)
}

// Queue hands every record over in arrival order, for consumers whose
// result depends on each record and its order. Put blocks while the
// queue is full.
type Queue struct {
	ch chan interface{}
}

// NewQueue creates a Queue holding up to n records.
func NewQueue(n int) *Queue {
	if n < 1 {
		n = 1
	}
	return &Queue{ch: make(chan interface{}, n)}
}

// Put implements Records. It returns false only if ctx is done before
// there is room for rec.
func (q *Queue) Put(ctx context.Context, rec interface{}) bool {
	select {
	case q.ch <- rec:
		return true
	case <-ctx.Done():
		return false
	}
}

// Take implements Records.
func (q *Queue) Take() (interface{}, bool) {
	select {
	case rec := <-q.ch:
		return rec, true
	default:
		return nil, false
	}
}

// Len implements Records.
func (q *Queue) Len() int {
	return len(q.ch)
}
