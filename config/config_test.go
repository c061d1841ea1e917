package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log:\n  debug: true\n"))
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Engine.GridSize)
	assert.Equal(t, int64(0), cfg.Engine.Seed)
	assert.Empty(t, cfg.Engine.Scenario)
	assert.Equal(t, 0.25, cfg.Engine.WallDensity)
	assert.Equal(t, 3, cfg.Engine.Obstacles)
	assert.Equal(t, "astar", cfg.Planner.Algorithm)
	assert.Equal(t, 300, cfg.Sim.ObstacleTickMs)
	assert.Equal(t, 50, cfg.Sim.TrainTickMs)
	assert.Equal(t, 6, cfg.Sim.AdaptiveRunS)
	assert.Zero(t, cfg.Sim.TrainRate)
	assert.Equal(t, 0.1, cfg.Learning.Alpha)
	assert.Equal(t, 0.9, cfg.Learning.Gamma)
	assert.Equal(t, 0.3, cfg.Learning.Epsilon)
	assert.Equal(t, 500, cfg.Learning.Episodes)
	assert.Equal(t, 2.0, cfg.Log.ProgressRPS)
	assert.True(t, cfg.Log.Debug, "explicit keys override defaults")
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
engine:
  grid_size: 12
  seed: 7
  scenario: boards/demo.json
  wall_density: 0.1
  obstacles: 5
planner:
  algorithm: bfs
sim:
  obstacle_tick_ms: 100
  train_rate: 250
learning:
  epsilon: 0.5
  episodes: 50
`))
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Engine.GridSize)
	assert.Equal(t, int64(7), cfg.Engine.Seed)
	assert.Equal(t, "boards/demo.json", cfg.Engine.Scenario)
	assert.Equal(t, 0.1, cfg.Engine.WallDensity)
	assert.Equal(t, 5, cfg.Engine.Obstacles)
	assert.Equal(t, "bfs", cfg.Planner.Algorithm)
	assert.Equal(t, 100, cfg.Sim.ObstacleTickMs)
	assert.Equal(t, 250.0, cfg.Sim.TrainRate)
	assert.Equal(t, 0.5, cfg.Learning.Epsilon)
	assert.Equal(t, 50, cfg.Learning.Episodes)
	assert.Equal(t, 50, cfg.Sim.TrainTickMs, "untouched keys keep their defaults")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
