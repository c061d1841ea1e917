// Package testutil holds shared test fixtures for building boards from
// ASCII layouts.
package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aokimitsu/gridpath/grid"
)

// BuildGrid parses an ASCII board layout, one row per line: '.' empty,
// '#' wall, 'S' start, 'E' end, 'X' obstacle marker, 'o'/'+'/'*' the
// search markings. Blank lines and per-line indentation are ignored so
// layouts can sit inside raw string literals. The layout must be
// square.
func BuildGrid(t *testing.T, layout string) *grid.Grid {
	t.Helper()

	var rows []string
	for _, line := range strings.Split(layout, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			rows = append(rows, line)
		}
	}
	require.NotEmpty(t, rows, "BuildGrid: empty layout")

	size := len(rows)
	g, err := grid.New(size)
	require.NoError(t, err, "BuildGrid: New")

	for r, line := range rows {
		require.Len(t, line, size, "BuildGrid: row %d must have %d cells", r, size)
		for c := 0; c < size; c++ {
			p := grid.Position{Row: r, Col: c}
			switch line[c] {
			case '.':
			case '#':
				g.SetType(p, grid.Wall)
			case 'S':
				g.SetType(p, grid.Start)
			case 'E':
				g.SetType(p, grid.End)
			case 'X':
				g.SetType(p, grid.Obstacle)
			case 'o':
				g.SetType(p, grid.Visited)
			case '+':
				g.SetType(p, grid.Considering)
			case '*':
				g.SetType(p, grid.Path)
			default:
				t.Fatalf("BuildGrid: unknown glyph %q at row %d col %d", line[c], r, c)
			}
		}
	}
	return g
}

// BuildBoard is BuildGrid plus the start and end positions found in the
// layout. Fails the test when either marker is missing.
func BuildBoard(t *testing.T, layout string) (g *grid.Grid, start, end grid.Position) {
	t.Helper()

	g = BuildGrid(t, layout)
	foundStart, foundEnd := false, false
	for r := 0; r < g.Size(); r++ {
		for c := 0; c < g.Size(); c++ {
			p := grid.Position{Row: r, Col: c}
			switch g.At(p).Type {
			case grid.Start:
				start, foundStart = p, true
			case grid.End:
				end, foundEnd = p, true
			}
		}
	}
	require.True(t, foundStart, "BuildBoard: layout has no start cell")
	require.True(t, foundEnd, "BuildBoard: layout has no end cell")
	return g, start, end
}
