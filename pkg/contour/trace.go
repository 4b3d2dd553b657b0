package contour

// Clockwise 8-neighbourhood in image orientation (row grows downwards):
// E, SE, S, SW, W, NW, N, NE.
var (
	ringRow = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
	ringCol = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
)

// Clockwise 4-neighbourhood: E, S, W, N.
var (
	dirRow = [4]int{0, 1, 0, -1}
	dirCol = [4]int{1, 0, -1, 0}
)

type pixel struct{ row, col int }

func ringIndex(dr, dc int) int {
	for i := range 8 {
		if ringRow[i] == dr && ringCol[i] == dc {
			return i
		}
	}
	return 0
}

// tracer walks the outer boundary of one component. 8-connected components are
// traced with Moore-neighbour tracing, 4-connected ones with a left-hand wall
// follower that only moves between 4-neighbours.
type tracer struct {
	rows, cols   int
	connectivity int
	inside       func(r, c int) bool
}

// step scans the ring around cur clockwise, starting just after back, and returns the
// first object pixel together with the background pixel scanned right before it.
func (t *tracer) step(cur, back pixel) (pixel, pixel, bool) {
	start := ringIndex(back.row-cur.row, back.col-cur.col)
	prev := back
	for k := 1; k <= 8; k++ {
		i := (start + k) % 8
		cand := pixel{cur.row + ringRow[i], cur.col + ringCol[i]}
		if t.inside(cand.row, cand.col) {
			return cand, prev, true
		}
		prev = cand
	}
	return pixel{}, pixel{}, false
}

// step4 leaves cur after arriving in direction dir, trying left, straight, right and
// back in that order. It returns the next pixel and the direction of the move.
func (t *tracer) step4(cur pixel, dir int) (pixel, int, bool) {
	for _, turn := range [4]int{3, 0, 1, 2} {
		d := (dir + turn) % 4
		cand := pixel{cur.row + dirRow[d], cur.col + dirCol[d]}
		if t.inside(cand.row, cand.col) {
			return cand, d, true
		}
	}
	return pixel{}, 0, false
}

// trace returns the closed boundary starting at start, which must be the first object
// pixel in raster order so that its west and north neighbours are background. The loop
// closes when the walk is about to repeat its first move.
func (t *tracer) trace(start pixel) ([]pixel, error) {
	if t.connectivity == 4 {
		return t.trace4(start)
	}

	pts := []pixel{start}
	first, firstBack, ok := t.step(start, pixel{start.row, start.col - 1})
	if !ok {
		// isolated pixel
		return pts, nil
	}

	cur, back := first, firstBack
	budget := 4*t.rows*t.cols + 8
	for steps := 0; ; steps++ {
		if steps > budget {
			return nil, ErrTraceRunaway
		}
		if cur == start {
			next, nextBack, _ := t.step(cur, back)
			if next == first && nextBack == firstBack {
				break
			}
		}
		pts = append(pts, cur)
		cur, back, _ = t.step(cur, back)
	}
	return pts, nil
}

func (t *tracer) trace4(start pixel) ([]pixel, error) {
	pts := []pixel{start}
	// Enter the start pixel heading east so the first probe looks north.
	first, firstDir, ok := t.step4(start, 0)
	if !ok {
		return pts, nil
	}

	cur, dir := first, firstDir
	budget := 4*t.rows*t.cols + 8
	for steps := 0; ; steps++ {
		if steps > budget {
			return nil, ErrTraceRunaway
		}
		if cur == start {
			next, nextDir, _ := t.step4(cur, dir)
			if next == first && nextDir == firstDir {
				break
			}
		}
		pts = append(pts, cur)
		cur, dir, _ = t.step4(cur, dir)
	}
	return pts, nil
}
