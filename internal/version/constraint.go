package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

var (
	// ErrNoVersionConstraint means the source carries no pragma solidity directive
	ErrNoVersionConstraint = errors.New("no version constraint found")
	// ErrMalformedVersionConstraint means a pragma solidity directive could not be parsed
	ErrMalformedVersionConstraint = errors.New("malformed version constraint")
	// ErrNoMatchingRelease means no known release satisfies the constraint
	ErrNoMatchingRelease = errors.New("no release satisfies version constraint")
)

var pragmaRe = regexp.MustCompile(`pragma\s+solidity\s+([^;]*);`)

var (
	lineCommentRe  = regexp.MustCompile(`//[^\n]*`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

type op int

const (
	opEQ op = iota
	opGT
	opGTE
	opLT
	opLTE
)

// comparator is a single bound against a canonical "vX.Y.Z" version
type comparator struct {
	op op
	v  string
}

func (c comparator) matches(v string) bool {
	cmp := semver.Compare(v, c.v)
	switch c.op {
	case opEQ:
		return cmp == 0
	case opGT:
		return cmp > 0
	case opGTE:
		return cmp >= 0
	case opLT:
		return cmp < 0
	case opLTE:
		return cmp <= 0
	}
	return false
}

// Constraint is the conjunction of every pragma directive in a source file.
// Each directive is a disjunction ("||") of comparator sets.
type Constraint struct {
	raw        []string
	directives [][][]comparator
}

// String returns the directives as written
func (c *Constraint) String() string {
	return strings.Join(c.raw, "; ")
}

// Matches reports whether version (e.g. "0.8.19") satisfies every directive
func (c *Constraint) Matches(version string) bool {
	v := canonical(version)
	if v == "" {
		return false
	}
	for _, directive := range c.directives {
		if !anySetMatches(directive, v) {
			return false
		}
	}
	return true
}

func anySetMatches(sets [][]comparator, v string) bool {
	for _, set := range sets {
		ok := true
		for _, cmp := range set {
			if !cmp.matches(v) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// ParseConstraint extracts and parses every pragma solidity directive in
// source. It performs no I/O.
func ParseConstraint(source string) (*Constraint, error) {
	stripped := blockCommentRe.ReplaceAllString(source, "")
	stripped = lineCommentRe.ReplaceAllString(stripped, "")

	matches := pragmaRe.FindAllStringSubmatch(stripped, -1)
	if len(matches) == 0 {
		return nil, ErrNoVersionConstraint
	}

	c := &Constraint{}
	for _, m := range matches {
		expr := strings.TrimSpace(m[1])
		sets, err := parseExpr(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrMalformedVersionConstraint, expr, err)
		}
		c.raw = append(c.raw, expr)
		c.directives = append(c.directives, sets)
	}
	return c, nil
}

func parseExpr(expr string) ([][]comparator, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}
	var sets [][]comparator
	for _, alt := range strings.Split(expr, "||") {
		fields := strings.Fields(joinOperators(alt))
		if len(fields) == 0 {
			return nil, fmt.Errorf("empty alternative")
		}
		var set []comparator
		for _, f := range fields {
			cmps, err := parseTerm(f)
			if err != nil {
				return nil, err
			}
			set = append(set, cmps...)
		}
		sets = append(sets, set)
	}
	return sets, nil
}

// joinOperators glues operators to their version so ">= 0.5.0" parses like ">=0.5.0"
func joinOperators(s string) string {
	for _, o := range []string{">=", "<=", ">", "<", "=", "^", "~"} {
		s = strings.ReplaceAll(s, o+" ", o)
	}
	return s
}

func parseTerm(term string) ([]comparator, error) {
	var prefix string
	for _, p := range []string{">=", "<=", ">", "<", "=", "^", "~"} {
		if strings.HasPrefix(term, p) {
			prefix = p
			break
		}
	}
	parts, err := parsePartial(strings.TrimPrefix(term, prefix))
	if err != nil {
		return nil, err
	}
	lo := format(parts[0], parts[1], parts[2])

	switch prefix {
	case "^":
		var hi string
		switch {
		case parts[0] > 0 || parts[3] == 1:
			hi = format(parts[0]+1, 0, 0)
		case parts[1] > 0 || parts[3] == 2:
			hi = format(0, parts[1]+1, 0)
		default:
			hi = format(0, 0, parts[2]+1)
		}
		return []comparator{{opGTE, lo}, {opLT, hi}}, nil
	case "~":
		if parts[3] == 1 {
			return []comparator{{opGTE, lo}, {opLT, format(parts[0]+1, 0, 0)}}, nil
		}
		return []comparator{{opGTE, lo}, {opLT, format(parts[0], parts[1]+1, 0)}}, nil
	case ">=":
		return []comparator{{opGTE, lo}}, nil
	case ">":
		return []comparator{{opGT, upperOf(parts)}}, nil
	case "<=":
		if parts[3] < 3 {
			return []comparator{{opLT, bumpOf(parts)}}, nil
		}
		return []comparator{{opLTE, lo}}, nil
	case "<":
		return []comparator{{opLT, lo}}, nil
	default:
		// exact, possibly partial: "0.8" means any 0.8.x
		if parts[3] < 3 {
			return []comparator{{opGTE, lo}, {opLT, bumpOf(parts)}}, nil
		}
		return []comparator{{opEQ, lo}}, nil
	}
}

// parsePartial parses "X", "X.Y" or "X.Y.Z" returning [X, Y, Z, numParts]
func parsePartial(s string) ([4]int, error) {
	var out [4]int
	if s == "" {
		return out, fmt.Errorf("missing version")
	}
	pieces := strings.Split(s, ".")
	if len(pieces) > 3 {
		return out, fmt.Errorf("invalid version %q", s)
	}
	for i, p := range pieces {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return out, fmt.Errorf("invalid version %q", s)
		}
		out[i] = n
	}
	out[3] = len(pieces)
	return out, nil
}

// bumpOf returns the exclusive upper bound of a partial version ("0.8" → v0.9.0)
func bumpOf(parts [4]int) string {
	switch parts[3] {
	case 1:
		return format(parts[0]+1, 0, 0)
	case 2:
		return format(parts[0], parts[1]+1, 0)
	default:
		return format(parts[0], parts[1], parts[2]+1)
	}
}

// upperOf returns the bound a strict ">" compares against. ">0.8" excludes
// all of 0.8.x, so the bound sits just below v0.9.0.
func upperOf(parts [4]int) string {
	if parts[3] == 3 {
		return format(parts[0], parts[1], parts[2])
	}
	// v0.9.0-0 sorts after every 0.8.x release and before v0.9.0
	return bumpOf(parts) + "-0"
}

func format(major, minor, patch int) string {
	return fmt.Sprintf("v%d.%d.%d", major, minor, patch)
}

// canonical turns "0.8.19" or "v0.8.19" into "v0.8.19", or "" if invalid
func canonical(version string) string {
	v := strings.TrimSpace(version)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}
