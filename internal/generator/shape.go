package generator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Shape is the union of every JSON value observed at one position.
// A Shape with no variant set has never held a value.
type Shape struct {
	Null    bool
	Bool    bool
	Integer bool
	Number  bool
	String  bool
	// Array is the merged element shape when arrays were observed.
	Array *Shape
	// Object is the merged object shape when objects were observed.
	Object *Object
}

// Object is a record shape merged over every object seen at one position.
// Fields keep the order in which keys were first seen.
type Object struct {
	Name   string
	Fields []*Field
	// Count is the number of objects merged into this shape.
	Count int
	index map[string]*Field
}

// Field is one key of an object shape.
type Field struct {
	Key   string
	Shape *Shape
	// Seen is the number of merged objects that carried the key.
	Seen int
}

// Optional reports whether some merged objects lacked the field.
func (f *Field) Optional(parent *Object) bool {
	return f.Seen < parent.Count
}

// Infer reads a JSON sample and returns its merged shape. Key order of the
// sample is preserved.
func Infer(sample []byte) (*Shape, error) {
	dec := json.NewDecoder(bytes.NewReader(sample))
	dec.UseNumber()

	shape := &Shape{}
	if err := shape.absorb(dec); err != nil {
		return nil, fmt.Errorf("invalid JSON sample: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid JSON sample: trailing data after top-level value")
	}
	return shape, nil
}

func (s *Shape) absorb(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := tok.(type) {
	case nil:
		s.Null = true
	case bool:
		s.Bool = true
	case string:
		s.String = true
	case json.Number:
		if strings.ContainsAny(v.String(), ".eE") {
			s.Number = true
		} else {
			s.Integer = true
		}
	case json.Delim:
		switch v {
		case '{':
			return s.absorbObject(dec)
		case '[':
			if s.Array == nil {
				s.Array = &Shape{}
			}
			for dec.More() {
				if err := s.Array.absorb(dec); err != nil {
					return err
				}
			}
			_, err := dec.Token()
			return err
		default:
			return fmt.Errorf("unexpected delimiter %q", v)
		}
	default:
		return fmt.Errorf("unexpected token %v", tok)
	}
	return nil
}

func (s *Shape) absorbObject(dec *json.Decoder) error {
	if s.Object == nil {
		s.Object = &Object{index: make(map[string]*Field)}
	}
	obj := s.Object
	obj.Count++

	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("object key is %T, expected string", tok)
		}

		field, ok := obj.index[key]
		if !ok {
			field = &Field{Key: key, Shape: &Shape{}}
			obj.index[key] = field
			obj.Fields = append(obj.Fields, field)
		}
		if !seen[key] {
			seen[key] = true
			field.Seen++
		}
		if err := field.Shape.absorb(dec); err != nil {
			return err
		}
	}
	_, err := dec.Token()
	return err
}

// Empty reports whether no value was ever observed.
func (s *Shape) Empty() bool {
	return !s.Null && !s.Bool && !s.Integer && !s.Number && !s.String && s.Array == nil && s.Object == nil
}

// nonNullVariants counts the variants other than null. Integer and
// number count as one.
func (s *Shape) nonNullVariants() int {
	n := 0
	for _, ok := range []bool{s.Bool, s.Integer || s.Number, s.String, s.Array != nil, s.Object != nil} {
		if ok {
			n++
		}
	}
	return n
}

// nameObjects assigns a unique type name to every object shape reachable
// from root and returns them with dependencies before dependents. Names are
// deterministic, so calling it again yields the same result.
// A root that is not a plain object reserves rootName for its alias.
func nameObjects(root *Shape, rootName string) []*Object {
	n := &namer{used: make(map[string]bool)}
	if isPlainObject(root) {
		n.walk(root, rootName)
		return n.ordered
	}
	n.used[rootName] = true
	if root.Array != nil {
		n.walk(root.Array, rootName+"Element")
	}
	if root.Object != nil {
		n.walk(&Shape{Object: root.Object}, rootName+"Object")
	}
	return n.ordered
}

func isPlainObject(s *Shape) bool {
	return s.Object != nil && !s.Null && s.nonNullVariants() == 1
}

type namer struct {
	used    map[string]bool
	ordered []*Object
}

func (n *namer) walk(s *Shape, hint string) {
	if s == nil {
		return
	}
	if s.Array != nil {
		n.walk(s.Array, hint+"Element")
	}
	if s.Object == nil {
		return
	}
	obj := s.Object
	obj.Name = n.unique(hint)
	for _, f := range obj.Fields {
		n.walk(f.Shape, TypeName(f.Key))
	}
	n.ordered = append(n.ordered, obj)
}

func (n *namer) unique(name string) string {
	candidate := name
	for i := 2; n.used[candidate]; i++ {
		candidate = fmt.Sprintf("%s%d", name, i)
	}
	n.used[candidate] = true
	return candidate
}
