package checkpoint

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrMalformedRow is returned for a complete row that is not valid CSV or has
// the wrong number of fields.
var ErrMalformedRow = errors.New("malformed checkpoint row")

// scanLog splits an RFC 4180 log into rows. Quoted fields are returned byte
// for byte, CR included. A row counts only once its terminating newline is on
// disk; anything after the last terminated row is a torn write, and end is
// the offset where it starts (len(data) when the log is clean).
func scanLog(data []byte) (rows [][]string, end int, err error) {
	pos := 0
	for pos < len(data) {
		// blank lines carry no row
		if data[pos] == '\n' {
			pos++
			continue
		}
		if data[pos] == '\r' && pos+1 < len(data) && data[pos+1] == '\n' {
			pos += 2
			continue
		}
		row, next, err := scanRow(data, pos)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: line %d: %v", ErrMalformedRow, 1+bytes.Count(data[:pos], []byte{'\n'}), err)
		}
		if next < 0 {
			return rows, pos, nil
		}
		rows = append(rows, row)
		pos = next
	}
	return rows, len(data), nil
}

// scanRow reads one row starting at pos. next is the offset after the row's
// newline, or -1 when data ends before the row does.
func scanRow(data []byte, pos int) (fields []string, next int, err error) {
	i := pos
	for {
		if i < len(data) && data[i] == '"' {
			i++
			var field []byte
			for {
				if i >= len(data) {
					return nil, -1, nil
				}
				c := data[i]
				i++
				if c != '"' {
					field = append(field, c)
					continue
				}
				if i < len(data) && data[i] == '"' {
					field = append(field, '"')
					i++
					continue
				}
				break
			}
			fields = append(fields, string(field))
		} else {
			j := i
			for j < len(data) && data[j] != ',' && data[j] != '\n' && data[j] != '\r' {
				if data[j] == '"' {
					return nil, 0, fmt.Errorf("bare quote in unquoted field")
				}
				j++
			}
			fields = append(fields, string(data[i:j]))
			i = j
		}

		if i >= len(data) {
			return nil, -1, nil
		}
		switch data[i] {
		case ',':
			i++
		case '\n':
			return fields, i + 1, nil
		case '\r':
			if i+1 >= len(data) {
				return nil, -1, nil
			}
			if data[i+1] != '\n' {
				return nil, 0, fmt.Errorf("bare CR after field %d", len(fields))
			}
			return fields, i + 2, nil
		default:
			return nil, 0, fmt.Errorf("unexpected %q after quoted field %d", data[i], len(fields))
		}
	}
}
