package planner

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aokimitsu/gridpath/grid"
	"github.com/aokimitsu/gridpath/obstacle"
	"github.com/aokimitsu/gridpath/testutil"
)

// ---- Helpers ----

// newPlanner builds a planner over the board and fails the test on
// error.
func newPlanner(t *testing.T, g *grid.Grid, start, end grid.Position) *Planner {
	t.Helper()
	p, err := New(g, start, end, Config{})
	require.NoError(t, err, "newPlanner")
	return p
}

// randomMaze fills a board with walls at the given density, leaving the
// corners as start and end.
func randomMaze(t *testing.T, rng *rand.Rand, size int, density float64) (*grid.Grid, grid.Position, grid.Position) {
	t.Helper()
	g, err := grid.New(size)
	require.NoError(t, err)

	start := grid.Position{Row: 0, Col: 0}
	end := grid.Position{Row: size - 1, Col: size - 1}
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			p := grid.Position{Row: r, Col: c}
			if p == start || p == end {
				continue
			}
			if rng.Float64() < density {
				g.SetType(p, grid.Wall)
			}
		}
	}
	g.SetType(start, grid.Start)
	g.SetType(end, grid.End)
	return g, start, end
}

// distancesFrom returns the true shortest edge counts from src to every
// reachable cell, computed with a plain queue sweep independent of the
// planner's searches.
func distancesFrom(g *grid.Grid, src grid.Position) map[grid.Position]int {
	dist := map[grid.Position]int{src: 0}
	queue := []grid.Position{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range grid.AllDirections {
			np := cur.Step(d)
			if _, ok := dist[np]; ok || !g.CanTraverse(np) {
				continue
			}
			dist[np] = dist[cur] + 1
			queue = append(queue, np)
		}
	}
	return dist
}

// assertContiguous checks the path steps one cell at a time from start
// to end.
func assertContiguous(t *testing.T, path []grid.Position, start, end grid.Position) {
	t.Helper()
	require.NotEmpty(t, path)
	assert.Equal(t, start, path[0], "path must begin at start")
	assert.Equal(t, end, path[len(path)-1], "path must finish at end")
	for i := 1; i < len(path); i++ {
		require.Equal(t, 1, grid.Manhattan(path[i-1], path[i]),
			"path jumps between %v and %v", path[i-1], path[i])
	}
}

// ========================================================================
// Construction
// ========================================================================

func TestNew_Validation(t *testing.T) {
	g, err := grid.New(5)
	require.NoError(t, err)

	_, err = New(nil, grid.Position{}, grid.Position{Row: 4, Col: 4}, Config{})
	assert.Error(t, err, "nil grid")

	_, err = New(g, grid.Position{Row: 9, Col: 9}, grid.Position{Row: 4, Col: 4}, Config{})
	assert.Error(t, err, "start out of bounds")

	_, err = New(g, grid.Position{Row: 1, Col: 1}, grid.Position{Row: 1, Col: 1}, Config{})
	assert.Error(t, err, "coinciding endpoints")
}

func TestParseAlgorithm(t *testing.T) {
	for name, want := range map[string]Algorithm{
		"astar":    AStar,
		"A*":       AStar,
		"dijkstra": Dijkstra,
		"Greedy":   Greedy,
		" bfs ":    BFS,
	} {
		got, err := ParseAlgorithm(name)
		require.NoError(t, err, "parse %q", name)
		assert.Equal(t, want, got, "parse %q", name)
	}

	_, err := ParseAlgorithm("dfs")
	assert.Error(t, err)
}

// ========================================================================
// Search correctness
// ========================================================================

func TestFindPath_FiveByFiveDiagonal(t *testing.T) {
	g, start, end := testutil.BuildBoard(t, `
		S....
		.....
		.....
		.....
		....E
	`)
	p := newPlanner(t, g, start, end)

	path := p.FindPath()
	require.Len(t, path, 9, "Manhattan distance 8 plus both endpoints")
	assertContiguous(t, path, start, end)

	// Interior cells carry the path marking; endpoints keep theirs.
	for _, pos := range path[1 : len(path)-1] {
		assert.Equal(t, grid.Path, g.At(pos).Type, "cell %v", pos)
	}
	assert.Equal(t, grid.Start, g.At(start).Type)
	assert.Equal(t, grid.End, g.At(end).Type)
}

func TestFindPath_Deterministic(t *testing.T) {
	g, start, end := testutil.BuildBoard(t, `
		S..#...
		.#.#.#.
		.#...#.
		.#####.
		.......
		.#####.
		......E
	`)
	p := newPlanner(t, g, start, end)

	first := p.FindPath()
	second := p.FindPath()
	require.NotEmpty(t, first)
	assert.Equal(t, first, second, "equal-score tie-break keeps reruns identical")
}

func TestFindPath_OptimalAcrossMazes(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	check := func(g *grid.Grid, start, end grid.Position) {
		t.Helper()
		want := -1
		if d, ok := distancesFrom(g, start)[end]; ok {
			want = d
		}

		p := newPlanner(t, g, start, end)
		astar := p.FindPath()
		if want < 0 {
			assert.Empty(t, astar, "unreachable end must yield an empty path")
			assert.Equal(t, 1, p.Stats().Failed)
			return
		}
		require.NotEmpty(t, astar, "reference search found a path of %d edges", want)
		assert.Equal(t, want, len(astar)-1, "astar length")
		assertContiguous(t, astar, start, end)

		dijkstra := p.FindPathUsing(Dijkstra)
		require.NotEmpty(t, dijkstra)
		assert.Equal(t, want, len(dijkstra)-1, "dijkstra length")

		bfs := p.FindPathUsing(BFS)
		require.NotEmpty(t, bfs)
		assert.Equal(t, want, len(bfs)-1, "bfs length")
	}

	for i := 0; i < 8; i++ {
		g, start, end := randomMaze(t, rng, 15, 0.28)
		check(g, start, end)
	}

	// One maze guaranteed open and one guaranteed sealed.
	open, start, end := testutil.BuildBoard(t, `
		S....
		.##..
		..#..
		.....
		....E
	`)
	check(open, start, end)

	sealed, start, end := testutil.BuildBoard(t, `
		S....
		#####
		.....
		.....
		....E
	`)
	check(sealed, start, end)
}

func TestHeuristic_NeverOverestimates(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 5; i++ {
		g, _, end := randomMaze(t, rng, 12, 0.3)
		for p, d := range distancesFrom(g, end) {
			require.LessOrEqual(t, grid.Manhattan(p, end), d,
				"maze %d: Manhattan from %v overestimates the true cost", i, p)
		}
	}
}

func TestFindPathUsing_GreedyReachesEnd(t *testing.T) {
	g, start, end := testutil.BuildBoard(t, `
		S......
		.......
		.......
		.......
		.......
		.......
		......E
	`)
	p := newPlanner(t, g, start, end)

	path := p.FindPathUsing(Greedy)
	require.NotEmpty(t, path)
	assertContiguous(t, path, start, end)
	assert.Len(t, path, 13, "greedy walks straight on an open board")
}

// ========================================================================
// Obstacle registry
// ========================================================================

func TestClearObstacles_RestoresCells(t *testing.T) {
	g, start, end := testutil.BuildBoard(t, `
		S....
		.....
		.....
		.....
		....E
	`)
	p := newPlanner(t, g, start, end)

	a, err := obstacle.New(g, obstacle.Config{Position: grid.Position{Row: 1, Col: 1}})
	require.NoError(t, err)
	b, err := obstacle.New(g, obstacle.Config{Position: grid.Position{Row: 2, Col: 3}})
	require.NoError(t, err)
	p.AddObstacle(a)
	p.AddObstacle(b)
	require.Len(t, p.Obstacles(), 2)

	p.ClearObstacles()
	assert.Empty(t, p.Obstacles())
	assert.Equal(t, grid.Empty, g.At(grid.Position{Row: 1, Col: 1}).Type)
	assert.Equal(t, grid.Empty, g.At(grid.Position{Row: 2, Col: 3}).Type)
}

func TestRemoveObstacle(t *testing.T) {
	g, start, end := testutil.BuildBoard(t, `
		S....
		.....
		.....
		.....
		....E
	`)
	p := newPlanner(t, g, start, end)

	o, err := obstacle.New(g, obstacle.Config{Position: grid.Position{Row: 2, Col: 2}})
	require.NoError(t, err)
	p.AddObstacle(o)

	assert.False(t, p.RemoveObstacle("no-such-id"))
	assert.True(t, p.RemoveObstacle(o.ID()))
	assert.Empty(t, p.Obstacles())
	assert.Equal(t, grid.Empty, g.At(grid.Position{Row: 2, Col: 2}).Type)
}

// ========================================================================
// Replanning
// ========================================================================

func TestUpdateObstacles_DirectHitThenUnreachable(t *testing.T) {
	g, start, end := testutil.BuildBoard(t, `
		S....
		##.##
		.....
		.....
		....E
	`)
	p := newPlanner(t, g, start, end)

	path := p.FindPath()
	require.NotEmpty(t, path)
	require.Contains(t, path, grid.Position{Row: 1, Col: 2}, "the only corridor runs through the gap")
	require.Contains(t, path, grid.Position{Row: 2, Col: 2})
	require.False(t, p.NeedsReplanning())

	o, err := obstacle.New(g, obstacle.Config{
		Pattern:  obstacle.Linear,
		Position: grid.Position{Row: 2, Col: 1},
		Facing:   grid.Right,
	})
	require.NoError(t, err)
	p.AddObstacle(o)

	// The obstacle steps onto (2,2), a cell of the current path.
	require.True(t, p.UpdateObstacles(start))
	assert.Equal(t, grid.Position{Row: 2, Col: 2}, o.Position())
	assert.True(t, p.NeedsReplanning())

	// With the corridor plugged there is no way around.
	assert.False(t, p.AdaptPath())
	assert.True(t, p.NeedsReplanning(), "a failed replan leaves the flag latched")
	assert.Equal(t, path, p.Path(), "the stale path stays untouched")
	assert.Equal(t, Stats{Replans: 0, Successful: 1, Failed: 1}, p.Stats())

	// Freeing the corridor lets the next adapt succeed.
	require.True(t, p.RemoveObstacle(o.ID()))
	assert.True(t, p.AdaptPath())
	assert.False(t, p.NeedsReplanning())
	assert.Equal(t, Stats{Replans: 1, Successful: 2, Failed: 1}, p.Stats())
	assertContiguous(t, p.Path(), start, end)
}

func TestUpdateObstacles_PredictedCrossingTriggersReplan(t *testing.T) {
	g, start, end := testutil.BuildBoard(t, `
		S...E
		.....
		.....
		.....
		.....
	`)
	p := newPlanner(t, g, start, end)

	path := p.FindPath()
	require.Len(t, path, 5, "straight run along the top row")

	// Two rows below the path, heading up: the collision is only in the
	// five-step projection, not at the current position.
	o, err := obstacle.New(g, obstacle.Config{
		Pattern:  obstacle.Linear,
		Position: grid.Position{Row: 3, Col: 2},
		Facing:   grid.Up,
	})
	require.NoError(t, err)
	p.AddObstacle(o)

	require.True(t, p.UpdateObstacles(start))
	assert.Equal(t, grid.Position{Row: 2, Col: 2}, o.Position(), "still off the path")
	assert.True(t, p.NeedsReplanning(), "the projected crossing latches the flag")

	// The threatened cell is still free, so the replan succeeds (and may
	// well pick the same route again).
	assert.True(t, p.AdaptPath())
	assert.False(t, p.NeedsReplanning())
	assert.Equal(t, 1, p.Stats().Replans)
}

func TestUpdateObstacles_ReportsMovement(t *testing.T) {
	g, start, end := testutil.BuildBoard(t, `
		S....
		.....
		.....
		.....
		....E
	`)
	p := newPlanner(t, g, start, end)
	assert.False(t, p.UpdateObstacles(start), "no obstacles, nothing moves")

	o, err := obstacle.New(g, obstacle.Config{
		Pattern:  obstacle.Linear,
		Position: grid.Position{Row: 2, Col: 2},
		Facing:   grid.Right,
		Speed:    2,
	})
	require.NoError(t, err)
	p.AddObstacle(o)

	assert.False(t, p.UpdateObstacles(start), "speed gate holds the first tick")
	assert.True(t, p.UpdateObstacles(start))
}

// ========================================================================
// Danger zones
// ========================================================================

func TestDangerZones_IntensityFalloff(t *testing.T) {
	g, start, end := testutil.BuildBoard(t, `
		S......
		.......
		.......
		.......
		.......
		.......
		......E
	`)
	p := newPlanner(t, g, start, end)

	o, err := obstacle.New(g, obstacle.Config{
		Pattern:  obstacle.Linear,
		Position: grid.Position{Row: 2, Col: 2},
		Facing:   grid.Right,
	})
	require.NoError(t, err)
	p.AddObstacle(o)

	zones := p.DangerZones()
	// Predictions run (2,3),(2,4),(2,5),(2,6) and bounce back to (2,5);
	// the revisit keeps the stronger earlier intensity.
	require.Len(t, zones, 4)
	assert.InDelta(t, 0.8, zones[grid.Position{Row: 2, Col: 3}], 1e-9)
	assert.InDelta(t, 0.7, zones[grid.Position{Row: 2, Col: 4}], 1e-9)
	assert.InDelta(t, 0.6, zones[grid.Position{Row: 2, Col: 5}], 1e-9)
	assert.InDelta(t, 0.5, zones[grid.Position{Row: 2, Col: 6}], 1e-9)
}

func TestDangerZones_SkipsOccupiedCellsAndKeepsMax(t *testing.T) {
	g, start, end := testutil.BuildBoard(t, `
		S......
		.......
		.......
		.......
		.......
		#.#....
		......E
	`)
	p := newPlanner(t, g, start, end)

	// Two obstacles marching toward each other over the same three free
	// cells. Each one blocks the other's projection, so the projections
	// fold back and revisit cells at weaker intensities.
	left, err := obstacle.New(g, obstacle.Config{
		Pattern:  obstacle.Linear,
		Position: grid.Position{Row: 2, Col: 0},
		Facing:   grid.Right,
	})
	require.NoError(t, err)
	right, err := obstacle.New(g, obstacle.Config{
		Pattern:  obstacle.Linear,
		Position: grid.Position{Row: 2, Col: 4},
		Facing:   grid.Left,
	})
	require.NoError(t, err)
	// Boxed between two walls: its projection never leaves its own cell,
	// which must not surface as a danger zone.
	boxed, err := obstacle.New(g, obstacle.Config{
		Pattern:  obstacle.Linear,
		Position: grid.Position{Row: 5, Col: 1},
		Facing:   grid.Right,
	})
	require.NoError(t, err)
	p.AddObstacle(left)
	p.AddObstacle(right)
	p.AddObstacle(boxed)

	zones := p.DangerZones()
	assert.NotContains(t, zones, grid.Position{Row: 2, Col: 0}, "cells under an obstacle are not danger zones")
	assert.NotContains(t, zones, grid.Position{Row: 2, Col: 4})
	assert.NotContains(t, zones, grid.Position{Row: 5, Col: 1})
	require.Len(t, zones, 3)
	assert.InDelta(t, 0.8, zones[grid.Position{Row: 2, Col: 1}], 1e-9, "(2,1) is the left obstacle's first step")
	assert.InDelta(t, 0.7, zones[grid.Position{Row: 2, Col: 2}], 1e-9)
	assert.InDelta(t, 0.8, zones[grid.Position{Row: 2, Col: 3}], 1e-9, "overlap keeps the strongest intensity")
}

// ========================================================================
// Metrics
// ========================================================================

func TestSuccessRate(t *testing.T) {
	g, start, end := testutil.BuildBoard(t, `
		S....
		#####
		.....
		.....
		....E
	`)
	p := newPlanner(t, g, start, end)
	assert.Zero(t, p.SuccessRate(), "no searches yet")

	assert.Empty(t, p.FindPath(), "the wall seals the end off")
	assert.Zero(t, p.SuccessRate())

	require.NoError(t, g.ClearWall(grid.Position{Row: 1, Col: 2}))
	assert.NotEmpty(t, p.FindPath())
	assert.InDelta(t, 0.5, p.SuccessRate(), 1e-9)
}
