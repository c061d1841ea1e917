package grid

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPosition reports an out-of-bounds coordinate or a cell whose
// type forbids the attempted edit.
var ErrInvalidPosition = errors.New("grid: invalid position")

// Grid is a fixed-size square board of cells. It is a plain store: the
// simulator, planner and learner each mutate only the fields they own
// (cell types vs. search scratch). Not safe for concurrent use.
type Grid struct {
	size  int
	cells []Cell
}

// New creates an empty size×size grid.
func New(size int) (*Grid, error) {
	if size < 2 {
		return nil, fmt.Errorf("grid: size must be at least 2, got %d", size)
	}
	g := &Grid{
		size:  size,
		cells: make([]Cell, size*size),
	}
	g.ResetScratch()
	return g, nil
}

// Size returns the board dimension N.
func (g *Grid) Size() int {
	return g.size
}

// InBounds reports whether p lies on the board.
func (g *Grid) InBounds(p Position) bool {
	return p.Row >= 0 && p.Row < g.size && p.Col >= 0 && p.Col < g.size
}

// Index returns the flat cell index for p (row-major). The caller must
// ensure p is in bounds.
func (g *Grid) Index(p Position) int {
	return p.Row*g.size + p.Col
}

// PositionAt is the inverse of Index.
func (g *Grid) PositionAt(idx int) Position {
	return Position{Row: idx / g.size, Col: idx % g.size}
}

// At returns the cell at p, or nil when p is out of bounds.
func (g *Grid) At(p Position) *Cell {
	if !g.InBounds(p) {
		return nil
	}
	return &g.cells[g.Index(p)]
}

// SetType overwrites the cell type at p. Out-of-bounds positions are
// ignored.
func (g *Grid) SetType(p Position, t CellType) {
	if !g.InBounds(p) {
		return
	}
	g.cells[g.Index(p)].Type = t
}

// CanTraverse reports whether a search or rollout may pass through p:
// in bounds and neither a wall nor an obstacle-covered cell.
func (g *Grid) CanTraverse(p Position) bool {
	if !g.InBounds(p) {
		return false
	}
	t := g.cells[g.Index(p)].Type
	return t != Wall && t != Obstacle
}

// CanOccupy reports whether a moving obstacle may enter p. Start, end,
// walls and cells covered by another obstacle are off limits.
func (g *Grid) CanOccupy(p Position) bool {
	if !g.InBounds(p) {
		return false
	}
	switch g.cells[g.Index(p)].Type {
	case Empty, Visited, Considering, Path:
		return true
	}
	return false
}

// SetWall places a user wall on an empty cell.
func (g *Grid) SetWall(p Position) error {
	c := g.At(p)
	if c == nil {
		return fmt.Errorf("%w: %v out of bounds", ErrInvalidPosition, p)
	}
	if c.Type != Empty {
		return fmt.Errorf("%w: %v is %s, not empty", ErrInvalidPosition, p, c.Type)
	}
	c.Type = Wall
	return nil
}

// ClearWall removes a user wall.
func (g *Grid) ClearWall(p Position) error {
	c := g.At(p)
	if c == nil {
		return fmt.Errorf("%w: %v out of bounds", ErrInvalidPosition, p)
	}
	if c.Type != Wall {
		return fmt.Errorf("%w: %v is %s, not a wall", ErrInvalidPosition, p, c.Type)
	}
	c.Type = Empty
	return nil
}

// ResetScratch clears the search scratch fields of every cell. Cell
// types are untouched.
func (g *Grid) ResetScratch() {
	for i := range g.cells {
		g.cells[i].resetScratch()
	}
}

// ClearSearchMarks erases visited/considering/path markings, leaving
// walls, start/end and obstacle cells alone.
func (g *Grid) ClearSearchMarks() {
	for i := range g.cells {
		switch g.cells[i].Type {
		case Visited, Considering, Path:
			g.cells[i].Type = Empty
		}
	}
}

// Reset returns every cell to empty with cleared scratch.
func (g *Grid) Reset() {
	for i := range g.cells {
		g.cells[i] = Cell{}
		g.cells[i].resetScratch()
	}
}

var glyphs = [...]byte{
	Empty:       '.',
	Wall:        '#',
	Start:       'S',
	End:         'E',
	Visited:     'o',
	Considering: '+',
	Path:        '*',
	Obstacle:    'X',
}

// String renders the board one character per cell, top row first.
func (g *Grid) String() string {
	var b strings.Builder
	b.Grow(g.size * (g.size + 1))
	for r := 0; r < g.size; r++ {
		for c := 0; c < g.size; c++ {
			b.WriteByte(glyphs[g.cells[r*g.size+c].Type])
		}
		b.WriteByte('\n')
	}
	return b.String()
}
