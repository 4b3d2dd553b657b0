package contour

// 4- and 8-neighbourhood offsets as (drow, dcol)
var (
	neighbours4 = [][2]int{{-1, 0}, {0, -1}, {0, 1}, {1, 0}}
	neighbours8 = [][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
)

func neighbourhood(connectivity int) [][2]int {
	if connectivity == 4 {
		return neighbours4
	}
	return neighbours8
}

// complement returns the background connectivity that pairs with an object connectivity.
func complement(connectivity int) int {
	if connectivity == 4 {
		return 8
	}
	return 4
}

// FillHoles returns a copy of mask in which every background pixel not connected to
// the slice border is set. Background connectivity is given by connectivity.
func FillHoles(mask []bool, rows, cols, connectivity int) []bool {
	outside := make([]bool, rows*cols)
	queue := make([]int, 0, 2*(rows+cols))

	seed := func(r, c int) {
		i := r*cols + c
		if !mask[i] && !outside[i] {
			outside[i] = true
			queue = append(queue, i)
		}
	}
	for c := 0; c < cols; c++ {
		seed(0, c)
		seed(rows-1, c)
	}
	for r := 0; r < rows; r++ {
		seed(r, 0)
		seed(r, cols-1)
	}

	nb := neighbourhood(connectivity)
	for len(queue) > 0 {
		i := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		r, c := i/cols, i%cols
		for _, d := range nb {
			nr, nc := r+d[0], c+d[1]
			if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
				continue
			}
			seed(nr, nc)
		}
	}

	filled := make([]bool, rows*cols)
	for i := range filled {
		filled[i] = !outside[i]
	}
	return filled
}

// LabelComponents assigns a component ID (1..n) to every set pixel of mask.
// Unset pixels get 0. IDs follow raster order of each component's first pixel.
func LabelComponents(mask []bool, rows, cols, connectivity int) ([]int, int) {
	ids := make([]int, rows*cols)
	nb := neighbourhood(connectivity)
	n := 0
	var stack []int

	for start := range mask {
		if !mask[start] || ids[start] != 0 {
			continue
		}
		n++
		ids[start] = n
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			r, c := i/cols, i%cols
			for _, d := range nb {
				nr, nc := r+d[0], c+d[1]
				if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
					continue
				}
				j := nr*cols + nc
				if mask[j] && ids[j] == 0 {
					ids[j] = n
					stack = append(stack, j)
				}
			}
		}
	}
	return ids, n
}
