package jsontree

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

var ErrMalformed = errors.New("malformed json")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

const contextRadius = 24

// SyntaxError locates a parse failure inside the source document.
type SyntaxError struct {
	Offset  int64
	Line    int
	Column  int
	Context string
	Err     error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("malformed json at line %d column %d (offset %d) near %q: %v",
		e.Line, e.Column, e.Offset, e.Context, e.Err)
}

func (e *SyntaxError) Unwrap() []error { return []error{ErrMalformed, e.Err} }

// Parse decodes a complete JSON document. A leading UTF-8 byte order mark is
// ignored. Trailing content after the top-level value is an error.
func Parse(data []byte) (*Value, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseValue(dec)
	if err != nil {
		return nil, newSyntaxError(data, dec.InputOffset(), err)
	}

	if tok, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = fmt.Errorf("unexpected trailing token %v", tok)
		}
		return nil, newSyntaxError(data, dec.InputOffset(), err)
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec)
		case '[':
			return parseArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", rune(t))
		}
	case string:
		return &Value{kind: String, text: t}, nil
	case json.Number:
		return &Value{kind: Number, text: t.String()}, nil
	case bool:
		return &Value{kind: Bool, boolean: t}, nil
	case nil:
		return &Value{kind: Null}, nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

func parseObject(dec *json.Decoder) (*Value, error) {
	obj := &Value{kind: Object}
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key must be a string, got %v", tok)
		}
		child, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		// Repeated keys keep their first position and take the last value.
		if i, dup := index[key]; dup {
			obj.members[i].Value = child
			continue
		}
		index[key] = len(obj.members)
		obj.members = append(obj.members, Member{Key: key, Value: child})
	}
	if err := closeToken(dec); err != nil {
		return nil, err
	}
	return obj, nil
}

func parseArray(dec *json.Decoder) (*Value, error) {
	arr := &Value{kind: Array}
	for dec.More() {
		child, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		arr.items = append(arr.items, child)
	}
	if err := closeToken(dec); err != nil {
		return nil, err
	}
	return arr, nil
}

func closeToken(dec *json.Decoder) error {
	if _, err := dec.Token(); err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

func newSyntaxError(data []byte, offset int64, err error) *SyntaxError {
	var se *json.SyntaxError
	if errors.As(err, &se) {
		offset = se.Offset
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	if offset < 0 {
		offset = 0
	}

	line, col := 1, 1
	for _, b := range data[:offset] {
		if b == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}

	start := max(int(offset)-contextRadius, 0)
	end := min(int(offset)+contextRadius, len(data))
	excerpt := strings.ToValidUTF8(string(data[start:end]), string(utf8.RuneError))

	return &SyntaxError{
		Offset:  offset,
		Line:    line,
		Column:  col,
		Context: excerpt,
		Err:     err,
	}
}

// CanonicalHash hashes the document's data rather than its formatting: keys
// are re-encoded in sorted order without whitespace before hashing, so
// reordering keys or reindenting a config file does not count as a change.
func CanonicalHash(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return "", newSyntaxError(data, dec.InputOffset(), err)
	}
	if tok, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = fmt.Errorf("unexpected trailing token %v", tok)
		}
		return "", newSyntaxError(data, dec.InputOffset(), err)
	}

	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
