package rl

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aokimitsu/gridpath/grid"
	"github.com/aokimitsu/gridpath/testutil"
)

func newAgent(t *testing.T, g *grid.Grid, cfg Config) *Agent {
	t.Helper()
	if cfg.RNG == nil {
		cfg.RNG = rand.New(rand.NewSource(42))
	}
	a, err := New(g, cfg)
	require.NoError(t, err, "newAgent")
	return a
}

// ========================================================================
// Construction and session control
// ========================================================================

func TestNew_Defaults(t *testing.T) {
	_, err := New(nil, Config{})
	assert.Error(t, err, "nil grid")

	g, err := grid.New(5)
	require.NoError(t, err)
	a := newAgent(t, g, Config{})
	assert.Equal(t, DefaultEpisodes, a.Episodes())
	assert.InDelta(t, DefaultEpsilon, a.Epsilon(), 1e-9)
	assert.False(t, a.IsTraining())
}

func TestStartTraining_Validation(t *testing.T) {
	g, err := grid.New(5)
	require.NoError(t, err)
	a := newAgent(t, g, Config{})

	assert.Error(t, a.StartTraining(grid.Position{Row: -1, Col: 0}, grid.Position{Row: 4, Col: 4}))
	assert.Error(t, a.StartTraining(grid.Position{Row: 0, Col: 0}, grid.Position{Row: 5, Col: 5}))
	assert.Error(t, a.StartTraining(grid.Position{Row: 2, Col: 2}, grid.Position{Row: 2, Col: 2}))
	assert.False(t, a.IsTraining())
}

func TestTrainStep_BeforeStartIsCompleteNoop(t *testing.T) {
	g, err := grid.New(5)
	require.NoError(t, err)
	a := newAgent(t, g, Config{})

	assert.True(t, a.TrainStep(), "no open run reads as complete")
	assert.Empty(t, a.History())
	assert.Zero(t, a.CurrentEpisode())
}

func TestStopTraining(t *testing.T) {
	g, start, end := testutil.BuildBoard(t, `
		S....
		.....
		.....
		.....
		....E
	`)
	a := newAgent(t, g, Config{})
	require.NoError(t, a.StartTraining(start, end))
	require.True(t, a.IsTraining())

	// Three transitions cannot finish an episode on this board.
	for i := 0; i < 3; i++ {
		require.False(t, a.TrainStep())
	}
	a.StopTraining()

	assert.False(t, a.IsTraining())
	assert.True(t, a.TrainStep(), "stopped run reads as complete")
	assert.Empty(t, a.History(), "no episode finished")
}

func TestSetEpisodes(t *testing.T) {
	g, start, end := testutil.BuildBoard(t, `
		S....
		.....
		.....
		.....
		....E
	`)
	a := newAgent(t, g, Config{})

	a.SetEpisodes(10)
	assert.Equal(t, 10, a.Episodes())
	a.SetEpisodes(-1)
	assert.Equal(t, 10, a.Episodes(), "non-positive budgets are ignored")

	require.NoError(t, a.StartTraining(start, end))
	a.SetEpisodes(99)
	assert.Equal(t, 10, a.Episodes(), "budget is locked while a run is open")
	a.StopTraining()
}

// ========================================================================
// Episode mechanics
// ========================================================================

// With the start walled in, every action is illegal: the agent never
// moves, every step costs -1, and each episode runs to the 2*N*N cutoff.
func TestTrainStep_BoxedStartRunsToCutoff(t *testing.T) {
	g, start, end := testutil.BuildBoard(t, `
		S#.
		##.
		..E
	`)
	a := newAgent(t, g, Config{Episodes: 2})
	require.NoError(t, a.StartTraining(start, end))

	// Cutoff is 2*9 = 18, so an episode ends on its 19th transition.
	// The call finishing the final episode reports the run complete.
	for i := 0; i < 37; i++ {
		require.False(t, a.TrainStep(), "call %d", i)
	}
	assert.True(t, a.TrainStep())
	assert.False(t, a.IsTraining())
	assert.True(t, a.TrainStep(), "complete run stays complete")

	history := a.History()
	require.Len(t, history, 2)
	for i, e := range history {
		assert.Equal(t, 19, e.Steps, "episode %d", i)
		assert.InDelta(t, -19.0, e.Reward, 1e-9, "episode %d", i)
		assert.False(t, e.Success, "episode %d", i)
	}
	assert.Zero(t, a.SuccessRate())
	assert.InDelta(t, 19.0, a.AverageSteps(), 1e-9)
	assert.InDelta(t, 0.3*0.99*0.99, a.Epsilon(), 1e-9, "epsilon decays once per episode")

	// The agent never moved, so nothing got marked and no Q-value rose
	// above the seed noise.
	for r := 0; r < g.Size(); r++ {
		for c := 0; c < g.Size(); c++ {
			assert.NotEqual(t, grid.Visited, g.At(grid.Position{Row: r, Col: c}).Type)
		}
	}
	assert.Nil(t, a.HeatMap())

	// The greedy rollout cannot leave the box either.
	path := a.FindPath()
	require.Len(t, path, 1, "partial trajectory from a sealed start")
	assert.Equal(t, start, path[0])
}

func TestHeatMap_UntrainedIsNil(t *testing.T) {
	g, err := grid.New(4)
	require.NoError(t, err)
	a := newAgent(t, g, Config{})
	assert.Nil(t, a.HeatMap())
}

// ========================================================================
// Convergence
// ========================================================================

// Default hyperparameters on an open 10x10 board: the policy must find
// the far corner reliably within the 500-episode budget.
func TestTraining_Convergence(t *testing.T) {
	g, err := grid.New(10)
	require.NoError(t, err)
	start := grid.Position{Row: 0, Col: 0}
	end := grid.Position{Row: 9, Col: 9}
	g.SetType(start, grid.Start)
	g.SetType(end, grid.End)

	a := newAgent(t, g, Config{})
	require.NoError(t, a.StartTraining(start, end))

	done := false
	for i := 0; i < 200000 && !done; i++ {
		done = a.TrainStep()
	}
	require.True(t, done, "run must finish within the step bound")

	history := a.History()
	require.Len(t, history, DefaultEpisodes)
	late := history[len(history)-50:]
	succeeded := 0
	for _, e := range late {
		if e.Success {
			succeeded++
			assert.GreaterOrEqual(t, e.Steps, 18, "corner to corner takes at least 18 steps")
		}
	}
	assert.Greater(t, float64(succeeded)/50, 0.8, "late-episode success rate")
	assert.InDelta(t, 0.1, a.Epsilon(), 1e-9, "epsilon bottoms out at the floor")
	assert.Greater(t, a.AverageSteps(), 0.0)

	// Greedy rollout: at most 1.5x the Manhattan lower bound of 18.
	path := a.FindPath()
	require.NotEmpty(t, path)
	assert.Equal(t, start, path[0])
	require.Equal(t, end, path[len(path)-1], "rollout must reach the end")
	assert.LessOrEqual(t, len(path)-1, 27, "rollout length")
	assert.GreaterOrEqual(t, len(path)-1, 18, "rollout cannot beat the Manhattan bound")

	heat := a.HeatMap()
	require.NotEmpty(t, heat, "a trained table projects a heat map")
	assert.NotContains(t, heat, start)
	assert.NotContains(t, heat, end)
	for pos, v := range heat {
		assert.Greater(t, v, 0.1, "cell %v", pos)
		assert.LessOrEqual(t, v, 1.0+1e-9, "cell %v", pos)
	}
}
