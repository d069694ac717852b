package fiscal

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatNumber renders the canonical document number:
//
//	"<PREFIX> <SERIESCODE><YEAR>/<SEQUENCE>"  e.g. "FT T2024/1"
//
// The form is stable and injective: an auditor can always recover
// (prefix, code, year, sequence) from it, and no two inputs collide because
// the year is a fixed four digits and the code carries no digits at its tail
// boundary ambiguity (codes are validated uppercase letters by the series
// service).
func FormatNumber(prefix, seriesCode string, year int, sequence int64) string {
	return fmt.Sprintf("%s %s%d/%d", prefix, seriesCode, year, sequence)
}

// ParseNumber recovers (prefix, seriesCode, year, sequence) from a formatted
// number. Used by the hashverify tool and the duplicate-number diagnostics.
func ParseNumber(number string) (prefix, seriesCode string, year int, sequence int64, err error) {
	sp := strings.IndexByte(number, ' ')
	sl := strings.IndexByte(number, '/')
	if sp <= 0 || sl <= sp+5 {
		return "", "", 0, 0, fmt.Errorf("malformed document number %q", number)
	}
	prefix = number[:sp]
	codeYear := number[sp+1 : sl]
	if len(codeYear) < 5 {
		return "", "", 0, 0, fmt.Errorf("malformed series segment in %q", number)
	}
	seriesCode = codeYear[:len(codeYear)-4]
	year, err = strconv.Atoi(codeYear[len(codeYear)-4:])
	if err != nil {
		return "", "", 0, 0, fmt.Errorf("malformed year in %q: %w", number, err)
	}
	sequence, err = strconv.ParseInt(number[sl+1:], 10, 64)
	if err != nil {
		return "", "", 0, 0, fmt.Errorf("malformed sequence in %q: %w", number, err)
	}
	return prefix, seriesCode, year, sequence, nil
}
