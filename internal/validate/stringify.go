package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Stringify re-encodes a JSON document as JSON.stringify(JSON.parse(raw),
// null, indent) would. Keys keep their order, except array-index keys which
// come first in ascending order. A repeated key keeps its first position and
// its last value. Numbers are printed in their shortest ECMAScript form and
// strings only escape what JSON requires.
func Stringify(raw []byte, indent string) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}

	s := stringifier{indent: indent}
	s.value(v, "")
	return s.buf.Bytes(), nil
}

type object struct {
	keys   []string
	values map[string]any
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '[':
		arr := []any{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	case '{':
		obj := &object{values: make(map[string]any)}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("object key is %T, not a string", keyTok)
			}
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			if _, seen := obj.values[key]; !seen {
				obj.keys = append(obj.keys, key)
			}
			obj.values[key] = v
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		obj.keys = propertyOrder(obj.keys)
		return obj, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", delim)
	}
}

// propertyOrder moves array-index keys ("0", "12") to the front in numeric
// order, which is how JavaScript engines enumerate own properties.
func propertyOrder(keys []string) []string {
	var indexes, names []string
	for _, k := range keys {
		if isArrayIndex(k) {
			indexes = append(indexes, k)
		} else {
			names = append(names, k)
		}
	}
	if len(indexes) == 0 {
		return keys
	}
	sort.Slice(indexes, func(i, j int) bool {
		a, _ := strconv.ParseUint(indexes[i], 10, 32)
		b, _ := strconv.ParseUint(indexes[j], 10, 32)
		return a < b
	})
	return append(indexes, names...)
}

func isArrayIndex(key string) bool {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return false
	}
	n, err := strconv.ParseUint(key, 10, 32)
	return err == nil && n < math.MaxUint32
}

type stringifier struct {
	buf    bytes.Buffer
	indent string
}

func (s *stringifier) value(v any, prefix string) {
	switch t := v.(type) {
	case nil:
		s.buf.WriteString("null")
	case bool:
		s.buf.WriteString(strconv.FormatBool(t))
	case string:
		s.str(t)
	case json.Number:
		s.buf.WriteString(FormatNumber(t))
	case []any:
		if len(t) == 0 {
			s.buf.WriteString("[]")
			return
		}
		inner := prefix + s.indent
		s.buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				s.buf.WriteByte(',')
			}
			s.newline(inner)
			s.value(elem, inner)
		}
		s.newline(prefix)
		s.buf.WriteByte(']')
	case *object:
		if len(t.keys) == 0 {
			s.buf.WriteString("{}")
			return
		}
		inner := prefix + s.indent
		s.buf.WriteByte('{')
		for i, k := range t.keys {
			if i > 0 {
				s.buf.WriteByte(',')
			}
			s.newline(inner)
			s.str(k)
			s.buf.WriteByte(':')
			if s.indent != "" {
				s.buf.WriteByte(' ')
			}
			s.value(t.values[k], inner)
		}
		s.newline(prefix)
		s.buf.WriteByte('}')
	}
}

func (s *stringifier) newline(prefix string) {
	if s.indent == "" {
		return
	}
	s.buf.WriteByte('\n')
	s.buf.WriteString(prefix)
}

func (s *stringifier) str(v string) {
	s.buf.WriteByte('"')
	for _, r := range v {
		switch r {
		case '"':
			s.buf.WriteString(`\"`)
		case '\\':
			s.buf.WriteString(`\\`)
		case '\b':
			s.buf.WriteString(`\b`)
		case '\f':
			s.buf.WriteString(`\f`)
		case '\n':
			s.buf.WriteString(`\n`)
		case '\r':
			s.buf.WriteString(`\r`)
		case '\t':
			s.buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&s.buf, `\u%04x`, r)
				continue
			}
			s.buf.WriteRune(r)
		}
	}
	s.buf.WriteByte('"')
}

// FormatNumber prints a JSON number the way JavaScript's Number#toString
// does: 1.0 is "1", 1e2 is "100", 1e21 is "1e+21". Values outside the
// float64 range print as null.
func FormatNumber(n json.Number) string {
	f, err := strconv.ParseFloat(string(n), 64)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "null"
	}
	if err != nil {
		return string(n)
	}
	if f == 0 {
		return "0"
	}

	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}

	// Shortest round-trip digits d.ddd and decimal exponent.
	mantissa, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
	digits := strings.Replace(mantissa, ".", "", 1)
	e, _ := strconv.Atoi(exp)
	k, pos := len(digits), e+1

	switch {
	case k <= pos && pos <= 21:
		return sign + digits + strings.Repeat("0", pos-k)
	case 0 < pos && pos <= 21:
		return sign + digits[:pos] + "." + digits[pos:]
	case -6 < pos && pos <= 0:
		return sign + "0." + strings.Repeat("0", -pos) + digits
	}

	out := sign + digits[:1]
	if k > 1 {
		out += "." + digits[1:]
	}
	if e >= 0 {
		return out + "e+" + strconv.Itoa(e)
	}
	return out + "e-" + strconv.Itoa(-e)
}
