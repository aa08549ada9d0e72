package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// normalizeJSONC blanks out comments and drops trailing commas so the result
// decodes with encoding/json. Byte offsets of the remaining tokens are
// preserved for error reporting.
func normalizeJSONC(content string) (string, error) {
	buf := []byte(content)

	const (
		code = iota
		str
		strEscape
		line
		block
	)
	mode := code
	for i := 0; i < len(buf); i++ {
		ch := buf[i]
		switch mode {
		case str:
			switch ch {
			case '\\':
				mode = strEscape
			case '"':
				mode = code
			}
		case strEscape:
			mode = str
		case line:
			if ch == '\n' || ch == '\r' {
				mode = code
				continue
			}
			buf[i] = ' '
		case block:
			if ch == '*' && i+1 < len(buf) && buf[i+1] == '/' {
				buf[i], buf[i+1] = ' ', ' '
				i++
				mode = code
				continue
			}
			if ch != '\n' && ch != '\r' && ch != '\t' {
				buf[i] = ' '
			}
		default:
			switch {
			case ch == '"':
				mode = str
			case ch == '/' && i+1 < len(buf) && buf[i+1] == '/':
				buf[i], buf[i+1] = ' ', ' '
				i++
				mode = line
			case ch == '/' && i+1 < len(buf) && buf[i+1] == '*':
				buf[i], buf[i+1] = ' ', ' '
				i++
				mode = block
			}
		}
	}
	if mode == block {
		return "", errors.New("unterminated block comment in JSONC")
	}

	dropTrailingCommas(buf)
	return string(buf), nil
}

// dropTrailingCommas replaces a comma that precedes only whitespace and a
// closing bracket. buf must already be free of comments.
func dropTrailingCommas(buf []byte) {
	inString, escape := false, false
	for i, ch := range buf {
		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
			continue
		}
		if ch != ',' {
			continue
		}
		j := i + 1
		for j < len(buf) && strings.IndexByte(" \t\r\n", buf[j]) >= 0 {
			j++
		}
		if j < len(buf) && (buf[j] == '}' || buf[j] == ']') {
			buf[i] = ' '
		}
	}
}

// decodeStrict decodes exactly one JSON value into out, rejecting unknown
// fields and reporting line/column positions.
func decodeStrict(content string, out any) error {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return locate(content, err)
	}

	var extra json.RawMessage
	switch err := dec.Decode(&extra); {
	case errors.Is(err, io.EOF):
		return nil
	case err == nil:
		return errors.New("multiple JSON values are not allowed")
	default:
		return locate(content, err)
	}
}

func locate(content string, err error) error {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}
	line, col := lineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

func lineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}
	limit := min(int(offset), len(content))
	prefix := content[:max(limit-1, 0)]
	line := strings.Count(prefix, "\n") + 1
	col := len(prefix) - strings.LastIndexByte(prefix, '\n')
	return line, col
}
