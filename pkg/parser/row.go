package parser

import (
	"strconv"
	"strings"

	"github.com/ccollicutt/falllog/pkg/telemetry"
)

// axisCount is the number of axis fields following the index.
const axisCount = 3

// ParseRow parses a data row into a sample.
//
// The row grammar is `index "," axes` where axes holds exactly three comma
// separated fields. Firmware that prints one flat group "i,x,y,z" and
// firmware that prints the index and then an "x,y,z" group both match it.
// A field count mismatch is reported before any numeric problem.
func ParseRow(line string) (telemetry.Sample, *LineError) {
	line = strings.TrimSpace(line)

	indexTok, rest, ok := strings.Cut(line, ",")
	if !ok {
		return telemetry.Sample{}, &LineError{Raw: line, Reason: ReasonWrongFieldCount}
	}

	axes := strings.Split(rest, ",")
	if len(axes) != axisCount {
		return telemetry.Sample{}, &LineError{Raw: line, Reason: ReasonWrongFieldCount}
	}

	tokens := [axisCount + 1]string{indexTok, axes[0], axes[1], axes[2]}
	var values [axisCount + 1]int64
	for i, tok := range tokens {
		tok = strings.TrimSpace(tok)
		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return telemetry.Sample{}, &LineError{Raw: line, Reason: ReasonNonNumericField, Field: tok}
		}
		values[i] = v
	}

	return telemetry.Sample{
		Index: values[0],
		X:     values[1],
		Y:     values[2],
		Z:     values[3],
	}, nil
}
