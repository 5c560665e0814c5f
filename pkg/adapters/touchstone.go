package adapters

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"strconv"
	"strings"
)

// touchstone format identifiers from the option line.
const (
	formatRI = "RI"
	formatMA = "MA"
	formatDB = "DB"
)

var touchstoneUnits = map[string]float64{
	"HZ":  1e-6,
	"KHZ": 1e-3,
	"MHZ": 1,
	"GHZ": 1e3,
}

// ParseTouchstone reads a one-port Touchstone (.s1p) file and returns the
// frequency axis in MHz plus the complex reflection coefficient per point.
//
// The option line ("# MHZ S RI R 50") selects the frequency unit and number
// format; RI, MA (angle in degrees) and DB are supported. Files without an
// option line use the Touchstone defaults (GHz, MA).
func ParseTouchstone(r io.Reader) ([]float64, []complex128, error) {
	unitScale := touchstoneUnits["GHZ"]
	format := formatMA

	var freqs []float64
	var gamma []complex128

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.Index(line, "!"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			var err error
			unitScale, format, err = parseOptionLine(line)
			if err != nil {
				return nil, nil, fmt.Errorf("touchstone line %d: %w", lineNo, err)
			}
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, nil, fmt.Errorf("touchstone line %d: expected 3 columns, got %d", lineNo, len(fields))
		}
		nums := make([]float64, 3)
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("touchstone line %d: %w", lineNo, err)
			}
			nums[i] = v
		}

		freqs = append(freqs, nums[0]*unitScale)
		switch format {
		case formatRI:
			gamma = append(gamma, complex(nums[1], nums[2]))
		case formatMA:
			gamma = append(gamma, cmplx.Rect(nums[1], nums[2]*math.Pi/180))
		case formatDB:
			gamma = append(gamma, cmplx.Rect(math.Pow(10, nums[1]/20), nums[2]*math.Pi/180))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("touchstone read: %w", err)
	}
	if len(freqs) == 0 {
		return nil, nil, fmt.Errorf("touchstone file has no data points")
	}

	return freqs, gamma, nil
}

func parseOptionLine(line string) (unitScale float64, format string, err error) {
	fields := strings.Fields(strings.ToUpper(strings.TrimPrefix(line, "#")))

	unitScale = touchstoneUnits["GHZ"]
	format = formatMA
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		switch {
		case touchstoneUnits[f] != 0:
			unitScale = touchstoneUnits[f]
		case f == formatRI || f == formatMA || f == formatDB:
			format = f
		case f == "S":
			// Parameter type; only S is meaningful for reflection files.
		case f == "R":
			// Reference impedance follows; skip its value.
			i++
		default:
			return 0, "", fmt.Errorf("unsupported option %q", f)
		}
	}
	return unitScale, format, nil
}
