package volumeio

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"sliceflatmap/pkg/flatmap"
)

// ReadPoints parses world points from CSV, three numeric columns per record. A first
// record that does not parse is treated as a header.
func ReadPoints(r io.Reader) ([][3]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var points [][3]float64
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read points")
		}
		if len(rec) < 3 {
			return nil, errors.Errorf("line %d: expected 3 coordinates, got %d fields", line, len(rec))
		}

		var p [3]float64
		var perr error
		for a := 0; a < 3; a++ {
			p[a], perr = strconv.ParseFloat(strings.TrimSpace(rec[a]), 64)
			if perr != nil {
				break
			}
		}
		if perr != nil {
			if line == 1 {
				continue
			}
			return nil, errors.Wrapf(perr, "line %d", line)
		}
		points = append(points, p)
	}
	return points, nil
}

// WritePoints writes one CSV record per point with its flatmap mapping. Unmapped
// points carry empty row, col and distance fields.
func WritePoints(w io.Writer, points [][3]float64, mappings []flatmap.Mapping) error {
	if len(points) != len(mappings) {
		return errors.Errorf("%d points but %d mappings", len(points), len(mappings))
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"x", "y", "z", "mapped", "row", "col", "distance"}); err != nil {
		return err
	}
	for i, p := range points {
		m := mappings[i]
		rec := []string{fmtFloat(p[0]), fmtFloat(p[1]), fmtFloat(p[2]), strconv.FormatBool(m.Mapped), "", "", ""}
		if m.Mapped {
			rec[4] = fmtFloat(m.Row)
			rec[5] = fmtFloat(m.Col)
			rec[6] = fmtFloat(m.Distance)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
