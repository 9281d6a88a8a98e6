// Package label converts detection records to and from the plain-text
// label format stored next to each dataset image.
//
// Each detection becomes one line:
//
//	<classIndex> <b0> <b1> <b2> <b3>
//
// terminated by a newline. The four box values are passed through as given;
// detectors in this repo emit normalized YOLO center/size boxes.
package label

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned by Parse for lines that are not five numeric fields.
var ErrMalformed = errors.New("label: malformed line")

// Detection is a single detector output: a class index plus four box
// coordinates in detector order.
type Detection struct {
	ClassIndex  int        `json:"class_index"`
	BoundingBox [4]float64 `json:"bounding_box"`
}

// Format serializes detections in input order, one newline-terminated line
// per detection. An empty slice yields "".
func Format(dets []Detection) string {
	if len(dets) == 0 {
		return ""
	}

	var b strings.Builder
	for _, d := range dets {
		b.WriteString(strconv.Itoa(d.ClassIndex))
		for _, v := range d.BoundingBox {
			b.WriteByte(' ')
			b.WriteString(formatCoord(v))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// formatCoord renders the shortest decimal that round-trips (0.1, 1, 0.25).
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Parse reads label text back into detections. Blank lines are skipped.
// The class field may be written as a float ("2.0"); it is truncated to int.
func Parse(text string) ([]Detection, error) {
	var dets []Detection
	for i, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 5 {
			return nil, fmt.Errorf("%w %d: want 5 fields, got %d", ErrMalformed, i+1, len(fields))
		}

		cls, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w %d: class: %v", ErrMalformed, i+1, err)
		}

		d := Detection{ClassIndex: int(cls)}
		for j := 0; j < 4; j++ {
			v, err := strconv.ParseFloat(fields[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("%w %d: coord %d: %v", ErrMalformed, i+1, j, err)
			}
			d.BoundingBox[j] = v
		}
		dets = append(dets, d)
	}
	return dets, nil
}
