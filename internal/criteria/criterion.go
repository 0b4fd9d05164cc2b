package criteria

import (
	"sort"
	"strconv"
	"strings"
)

// Op is a comparison operator.
type Op string

const (
	OpGT Op = ">"
	OpLT Op = "<"
	OpGE Op = ">="
	OpLE Op = "<="
	OpEQ Op = "=="
	OpNE Op = "!="
)

// Operators lists the supported comparison operators.
func Operators() []string {
	return []string{string(OpGT), string(OpLT), string(OpGE), string(OpLE), string(OpEQ), string(OpNE)}
}

// Compare applies op to (a, b).
func (op Op) Compare(a, b float64) bool {
	switch op {
	case OpGT:
		return a > b
	case OpLT:
		return a < b
	case OpGE:
		return a >= b
	case OpLE:
		return a <= b
	case OpEQ:
		return a == b
	case OpNE:
		return a != b
	}
	return false
}

// Kind tags a Criterion's threshold.
type Kind int

const (
	KindNumber Kind = iota
	KindString
)

// Criterion is one condition on a field. A KindNumber criterion compares
// against Number; a KindString criterion compares against Text. Exact is
// set for clauses written as field=value.
type Criterion struct {
	Field  string
	Op     Op
	Kind   Kind
	Number float64
	IsInt  bool
	Text   string
	Exact  bool
}

func (c Criterion) String() string {
	if c.Exact {
		return c.Field + "=" + c.Text
	}
	return c.Field + string(c.Op) + c.value()
}

func (c Criterion) value() string {
	if c.Kind == KindString {
		return c.Text
	}
	if c.IsInt {
		return strconv.FormatInt(int64(c.Number), 10)
	}
	s := strconv.FormatFloat(c.Number, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Set maps a field to its single criterion.
type Set map[string]Criterion

// Fields returns the set's field names in sorted order.
func (s Set) Fields() []string {
	fields := make([]string, 0, len(s))
	for f := range s {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// String serializes the set in sorted field order; Parse(s.String())
// yields an equal set.
func (s Set) String() string {
	clauses := make([]string, 0, len(s))
	for _, f := range s.Fields() {
		clauses = append(clauses, s[f].String())
	}
	return strings.Join(clauses, ",")
}
