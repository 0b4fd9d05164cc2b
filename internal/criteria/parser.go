package criteria

import (
	"strconv"
	"strings"
)

var (
	twoCharOps = []Op{OpGE, OpLE, OpEQ, OpNE}
	oneCharOps = []Op{OpGT, OpLT}
)

// Report lists what ParseDetailed discarded or overwrote.
type Report struct {
	Dropped  []string
	Repeated []string
}

// Parse reads a comma-separated criteria string such as
// "market_cap>1000000000,pe_ratio<20,sector=Technology". Malformed clauses
// are skipped.
func Parse(text string) Set {
	set, _ := ParseDetailed(text)
	return set
}

// ParseDetailed is Parse plus a report of dropped and repeated clauses. A
// repeated field keeps its last occurrence.
func ParseDetailed(text string) (Set, Report) {
	set := Set{}
	var rep Report
	for _, clause := range strings.Split(text, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		c, ok := parseClause(clause)
		if !ok {
			rep.Dropped = append(rep.Dropped, clause)
			continue
		}
		if _, dup := set[c.Field]; dup {
			rep.Repeated = append(rep.Repeated, c.Field)
		}
		set[c.Field] = c
	}
	return set, rep
}

func parseClause(clause string) (Criterion, bool) {
	op, idx := findOp(clause, twoCharOps)
	if idx < 0 {
		op, idx = findOp(clause, oneCharOps)
	}
	if idx < 0 {
		eq := strings.Index(clause, "=")
		if eq < 0 {
			return Criterion{}, false
		}
		field := strings.TrimSpace(clause[:eq])
		value := strings.TrimSpace(clause[eq+1:])
		if field == "" || value == "" {
			return Criterion{}, false
		}
		return Criterion{Field: field, Op: OpEQ, Kind: KindString, Text: value, Exact: true}, true
	}

	field := strings.TrimSpace(clause[:idx])
	value := strings.TrimSpace(clause[idx+len(op):])
	if field == "" || value == "" {
		return Criterion{}, false
	}
	c := Criterion{Field: field, Op: op}
	coerce(&c, value)
	return c, true
}

// findOp returns the operator from ops that occurs earliest in clause.
func findOp(clause string, ops []Op) (Op, int) {
	best, at := Op(""), -1
	for _, op := range ops {
		if i := strings.Index(clause, string(op)); i >= 0 && (at < 0 || i < at) {
			best, at = op, i
		}
	}
	return best, at
}

// coerce sets the threshold: a float if the value has a decimal point, an
// integer if it parses as one, else a string.
func coerce(c *Criterion, value string) {
	if strings.Contains(value, ".") {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			c.Kind, c.Number = KindNumber, f
			return
		}
	} else if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		c.Kind, c.Number, c.IsInt = KindNumber, float64(n), true
		return
	}
	c.Kind, c.Text = KindString, value
}
