package tonal

import (
	"fmt"
	"strconv"
	"strings"
)

// Camelot is a position on the 24-slot Camelot wheel, e.g. 8B (C Major).
// The zero value is invalid.
type Camelot struct {
	Number int  // 1..12
	Letter byte // 'A' minor, 'B' major
}

// Camelot numbers indexed by tonic pitch class.
var (
	majorCamelot = [12]int{8, 3, 10, 5, 12, 7, 2, 9, 4, 11, 6, 1}
	minorCamelot = [12]int{5, 12, 7, 2, 9, 4, 11, 6, 1, 8, 3, 10}
)

// CamelotFor returns the wheel position of a key.
func CamelotFor(tonic int, mode KeyMode) Camelot {
	tonic = ((tonic % 12) + 12) % 12
	if mode == Minor {
		return Camelot{Number: minorCamelot[tonic], Letter: 'A'}
	}
	return Camelot{Number: majorCamelot[tonic], Letter: 'B'}
}

// ParseCamelot parses codes like "8B" or "12a".
func ParseCamelot(s string) (Camelot, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 2 {
		return Camelot{}, fmt.Errorf("invalid camelot code %q", s)
	}
	letter := s[len(s)-1]
	if letter != 'A' && letter != 'B' {
		return Camelot{}, fmt.Errorf("invalid camelot letter in %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 1 || n > 12 {
		return Camelot{}, fmt.Errorf("invalid camelot number in %q", s)
	}
	return Camelot{Number: n, Letter: letter}, nil
}

// Valid reports whether c is a wheel position.
func (c Camelot) Valid() bool {
	return c.Number >= 1 && c.Number <= 12 && (c.Letter == 'A' || c.Letter == 'B')
}

func (c Camelot) String() string {
	if !c.Valid() {
		return ""
	}
	return fmt.Sprintf("%d%c", c.Number, c.Letter)
}

// Key returns the tonic pitch class and mode of a wheel position.
func (c Camelot) Key() (int, KeyMode, bool) {
	if !c.Valid() {
		return 0, Major, false
	}
	table, mode := majorCamelot, Major
	if c.Letter == 'A' {
		table, mode = minorCamelot, Minor
	}
	for pc, n := range table {
		if n == c.Number {
			return pc, mode, true
		}
	}
	return 0, Major, false
}

// Relation classifies how two wheel positions relate.
type Relation int

const (
	RelationUnknown Relation = iota
	RelationIdentical
	RelationRelative    // same number, other letter
	RelationAdjacent    // same letter, one step around the wheel
	RelationEnergyShift // same letter, five or seven steps; informational only
	RelationNone
)

func (r Relation) String() string {
	switch r {
	case RelationIdentical:
		return "identical"
	case RelationRelative:
		return "relative"
	case RelationAdjacent:
		return "adjacent"
	case RelationEnergyShift:
		return "energy_shift"
	case RelationNone:
		return "none"
	default:
		return "unknown"
	}
}

// MarshalText encodes the relation by name.
func (r Relation) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// wheelDistance is the shortest distance between two numbers on the 12-hour wheel.
func wheelDistance(a, b int) int {
	d := (a - b + 12) % 12
	return min(d, 12-d)
}

// RelationBetween is symmetric in its arguments.
func RelationBetween(a, b Camelot) Relation {
	if !a.Valid() || !b.Valid() {
		return RelationUnknown
	}
	d := wheelDistance(a.Number, b.Number)
	switch {
	case a == b:
		return RelationIdentical
	case d == 0:
		return RelationRelative
	case a.Letter == b.Letter && d == 1:
		return RelationAdjacent
	case a.Letter == b.Letter && d == 5:
		return RelationEnergyShift
	default:
		return RelationNone
	}
}

// Compatibility scores harmonic mixing: 1.0 identical, 0.9 relative,
// 0.8 adjacent, 0.3 otherwise and 0 when either code is invalid.
func Compatibility(a, b Camelot) float64 {
	switch RelationBetween(a, b) {
	case RelationIdentical:
		return 1.0
	case RelationRelative:
		return 0.9
	case RelationAdjacent:
		return 0.8
	case RelationUnknown:
		return 0.0
	default:
		return 0.3
	}
}

// Neighbors returns the positions scoring at least 0.8 against c: itself,
// its relative and its two adjacent positions.
func Neighbors(c Camelot) []Camelot {
	if !c.Valid() {
		return nil
	}
	other := byte('A')
	if c.Letter == 'A' {
		other = 'B'
	}
	up := c.Number%12 + 1
	down := (c.Number+10)%12 + 1
	return []Camelot{
		c,
		{Number: c.Number, Letter: other},
		{Number: up, Letter: c.Letter},
		{Number: down, Letter: c.Letter},
	}
}
