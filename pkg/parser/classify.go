package parser

import (
	"strconv"
	"strings"
)

// Literal phrases emitted by the logger firmware.
const (
	StartPhrase       = "Reading fall data from EEPROM"
	TimeScaleLabel    = "Time scale between data:"
	EndPhrase         = "End of data"
	ColumnHeader      = "Index,AccX,AccY,AccZ"
	RecordCountPhrase = "Number of records"
)

// Classify assigns a frame kind to a line. It is pure and total: the first
// matching rule wins and anything unmatched is FrameUnrecognized.
func Classify(line string) FrameKind {
	line = strings.TrimSpace(line)

	switch {
	case strings.Contains(line, StartPhrase):
		return FrameStartMarker
	case strings.Contains(line, TimeScaleLabel):
		return FrameTimeScale
	case strings.Contains(line, EndPhrase):
		return FrameEndMarker
	case strings.Contains(line, ColumnHeader), strings.Contains(line, RecordCountPhrase):
		return FrameMetadataNoise
	case len(line) > 0 && isDigit(line[0]):
		return FrameDataRow
	default:
		return FrameUnrecognized
	}
}

// ParseTimeScale extracts the microsecond interval from a time scale line,
// e.g. "Time scale between data: 2000 us". The value is the first
// whitespace-delimited token of the segment between the label's colon and
// the next colon, so "2000:us" reads as 2000.
func ParseTimeScale(line string) (int64, *LineError) {
	_, rest, ok := strings.Cut(line, TimeScaleLabel)
	if !ok {
		return 0, &LineError{Raw: line, Reason: ReasonNonNumericField}
	}
	rest, _, _ = strings.Cut(rest, ":")

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, &LineError{Raw: line, Reason: ReasonNonNumericField}
	}

	v, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, &LineError{Raw: line, Reason: ReasonNonNumericField, Field: fields[0]}
	}
	return v, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
