package grid

import (
	"fmt"
	"strings"
)

// Position is a (row, col) grid coordinate. Row 0 is the top row.
type Position struct {
	Row, Col int
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Step returns the neighboring position one cell away in dir.
func (p Position) Step(d Direction) Position {
	dr, dc := d.Delta()
	return Position{Row: p.Row + dr, Col: p.Col + dc}
}

// Manhattan returns |Δrow| + |Δcol| between two positions.
func Manhattan(a, b Position) int {
	return abs(a.Row-b.Row) + abs(a.Col-b.Col)
}

// Direction is one of the four cardinal movement directions.
type Direction uint8

const (
	Up Direction = iota
	Right
	Down
	Left
)

// AllDirections lists the directions in their canonical order. Search
// and fallback loops iterate it so results stay reproducible.
var AllDirections = [4]Direction{Up, Right, Down, Left}

var (
	deltaRow = [4]int{-1, 0, 1, 0}
	deltaCol = [4]int{0, 1, 0, -1}
)

// Delta returns the row/col displacement for one step in d.
func (d Direction) Delta() (dr, dc int) {
	return deltaRow[d], deltaCol[d]
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	return (d + 2) % 4
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	}
	return "unknown"
}

// ParseDirection maps a scenario or config name to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return Up, nil
	case "right":
		return Right, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	}
	return Up, fmt.Errorf("grid: unknown direction %q (want up, right, down or left)", s)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
