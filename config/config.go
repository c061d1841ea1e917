package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	Planner  PlannerConfig  `mapstructure:"planner"`
	Sim      SimConfig      `mapstructure:"sim"`
	Learning LearningConfig `mapstructure:"learning"`
	Log      LogConfig      `mapstructure:"log"`
}

type EngineConfig struct {
	GridSize int   `mapstructure:"grid_size"`
	Seed     int64 `mapstructure:"seed"` // 0 seeds from the clock
	// Scenario points at a board file; empty generates a random board.
	Scenario    string  `mapstructure:"scenario"`
	WallDensity float64 `mapstructure:"wall_density"`
	Obstacles   int     `mapstructure:"obstacles"` // random spawns on a generated board
}

type PlannerConfig struct {
	Algorithm string `mapstructure:"algorithm"` // astar | dijkstra | greedy | bfs
}

type SimConfig struct {
	ObstacleTickMs int `mapstructure:"obstacle_tick_ms"`
	TrainTickMs    int `mapstructure:"train_tick_ms"`
	AdaptiveRunS   int `mapstructure:"adaptive_run_s"`
	// TrainRate caps headless training transitions per second; 0 runs
	// unpaced.
	TrainRate float64 `mapstructure:"train_rate"`
}

type LearningConfig struct {
	Alpha    float64 `mapstructure:"alpha"`
	Gamma    float64 `mapstructure:"gamma"`
	Epsilon  float64 `mapstructure:"epsilon"`
	Episodes int     `mapstructure:"episodes"`
}

type LogConfig struct {
	Debug bool `mapstructure:"debug"`
	// ProgressRPS throttles training progress lines.
	ProgressRPS float64 `mapstructure:"progress_rps"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("engine.grid_size", 20)
	v.SetDefault("engine.seed", 0)
	v.SetDefault("engine.wall_density", 0.25)
	v.SetDefault("engine.obstacles", 3)
	v.SetDefault("planner.algorithm", "astar")
	v.SetDefault("sim.obstacle_tick_ms", 300)
	v.SetDefault("sim.train_tick_ms", 50)
	v.SetDefault("sim.adaptive_run_s", 6)
	v.SetDefault("sim.train_rate", 0)
	v.SetDefault("learning.alpha", 0.1)
	v.SetDefault("learning.gamma", 0.9)
	v.SetDefault("learning.epsilon", 0.3)
	v.SetDefault("learning.episodes", 500)
	v.SetDefault("log.debug", false)
	v.SetDefault("log.progress_rps", 2)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
