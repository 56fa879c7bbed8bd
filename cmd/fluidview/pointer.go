package main

// pointerMouse is the tracker id of the mouse; touch ids are offset past it.
const pointerMouse = -1

// pointer is one active drag.
type pointer struct {
	last  [2]float64
	color [3]float64
}

// stroke is the movement of one pointer since the previous frame.
type stroke struct {
	point [2]float64
	delta [2]float64
	color [3]float64
}

// tracker follows mouse and touch drags across frames. It turns each
// pointer's movement into a stroke and assigns a dye color per drag.
type tracker struct {
	active map[int]*pointer
}

func newTracker() *tracker {
	return &tracker{active: make(map[int]*pointer)}
}

// normalize maps a position in layout pixels to surface coordinates in
// [0, 1] with y pointing up.
func normalize(x, y, width, height int) [2]float64 {
	if width < 1 || height < 1 {
		return [2]float64{}
	}
	u := float64(x) / float64(width)
	v := 1 - float64(y)/float64(height)
	return [2]float64{min(max(u, 0), 1), min(max(v, 0), 1)}
}

// update records the position of every pressed pointer and returns the
// strokes of those that moved. Pointers missing from pos are released.
// pick chooses the color of a new drag.
func (t *tracker) update(pos map[int][2]float64, pick func() [3]float64) []stroke {
	for id := range t.active {
		if _, ok := pos[id]; !ok {
			delete(t.active, id)
		}
	}
	var out []stroke
	for id, p := range pos {
		cur, ok := t.active[id]
		if !ok {
			t.active[id] = &pointer{last: p, color: pick()}
			continue
		}
		d := [2]float64{p[0] - cur.last[0], p[1] - cur.last[1]}
		if d == ([2]float64{}) {
			continue
		}
		cur.last = p
		out = append(out, stroke{point: p, delta: d, color: cur.color})
	}
	return out
}

// Len returns the number of pointers being tracked.
func (t *tracker) Len() int { return len(t.active) }
