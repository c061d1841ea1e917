// Package integration exercises the full engine stack end to end:
// scenario files, training, planning and the adaptive tick loop.
package integration

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aokimitsu/gridpath/grid"
	"github.com/aokimitsu/gridpath/rl"
	"github.com/aokimitsu/gridpath/scenario"
	"github.com/aokimitsu/gridpath/sim"
)

// TestEngine wraps a session built from a scenario file with all
// subsystems wired together.
type TestEngine struct {
	Sess  *sim.Session
	Grid  *grid.Grid
	Start grid.Position
	End   grid.Position
}

// NewTestEngine loads scenarioJSON through the scenario pipeline and
// builds a session over it, mirroring the wiring in main.go. A zero
// cfg gets a fixed seed so runs are reproducible.
func NewTestEngine(t *testing.T, scenarioJSON string, cfg sim.Config) *TestEngine {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scenario.json")
	require.NoError(t, os.WriteFile(path, []byte(scenarioJSON), 0644))
	sc, err := scenario.Load(path)
	require.NoError(t, err, "scenario")

	g, err := grid.New(sc.Size)
	require.NoError(t, err)
	require.NoError(t, sc.Apply(g))
	start := grid.Position{Row: sc.Start.Row, Col: sc.Start.Col}
	end := grid.Position{Row: sc.End.Row, Col: sc.End.Col}

	if cfg.RNG == nil {
		cfg.RNG = rand.New(rand.NewSource(42))
	}
	sess, err := sim.New(g, start, end, cfg)
	require.NoError(t, err, "session")

	for i, spec := range sc.Obstacles {
		oc, err := spec.Config()
		require.NoError(t, err, "obstacle %d", i)
		_, err = sess.AddObstacle(oc)
		require.NoError(t, err, "obstacle %d", i)
	}

	return &TestEngine{Sess: sess, Grid: g, Start: start, End: end}
}

// TrainToCompletion runs training ticks until the budget is exhausted
// and returns the final metrics.
func (e *TestEngine) TrainToCompletion(t *testing.T, maxTicks int) rl.Metrics {
	t.Helper()

	require.NoError(t, e.Sess.StartTraining())
	for i := 0; i < maxTicks && e.Sess.IsTraining(); i++ {
		e.Sess.TickTraining()
	}
	require.False(t, e.Sess.IsTraining(), "training exceeded %d ticks", maxTicks)
	return e.Sess.TrainingMetrics()
}
