package circuitbreaker

import "time"

// slot holds the weighted errors and attempts seen during one second.
type slot struct {
	errors float64
	total  int
}

// window is a ring of one-second slots covering the last len(slots) seconds.
type window struct {
	slots   []slot
	head    int
	headSec int64
}

func newWindow(seconds int) window {
	if seconds <= 0 || seconds > 60 {
		seconds = 60
	}
	return window{slots: make([]slot, seconds)}
}

// advance rotates the ring forward to sec, zeroing the slots it passes.
func (w *window) advance(sec int64) {
	if w.headSec == 0 {
		w.headSec = sec
		return
	}
	gap := sec - w.headSec
	if gap <= 0 {
		return
	}
	n := len(w.slots)
	for i := range min(int(gap), n) {
		w.slots[(w.head+1+i)%n] = slot{}
	}
	w.head = (w.head + int(gap)) % n
	w.headSec = sec
}

func (w *window) record(weight float64, now time.Time) {
	w.advance(now.Unix())
	w.slots[w.head].total++
	w.slots[w.head].errors += weight
}

// rate returns the weighted error rate and the number of attempts in the window.
func (w *window) rate(now time.Time) (float64, int) {
	w.advance(now.Unix())
	var errs float64
	var total int
	for _, s := range w.slots {
		errs += s.errors
		total += s.total
	}
	if total == 0 {
		return 0, 0
	}
	return errs / float64(total), total
}

func (w *window) reset() {
	clear(w.slots)
	w.head = 0
	w.headSec = 0
}
