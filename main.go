package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aokimitsu/gridpath/config"
	"github.com/aokimitsu/gridpath/grid"
	"github.com/aokimitsu/gridpath/obstacle"
	"github.com/aokimitsu/gridpath/planner"
	"github.com/aokimitsu/gridpath/rl"
	"github.com/aokimitsu/gridpath/scenario"
	"github.com/aokimitsu/gridpath/scheduler"
	"github.com/aokimitsu/gridpath/sim"
)

// retries for random boards that seal the goal away
const boardAttempts = 10

func main() {
	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Log.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	algo, err := planner.ParseAlgorithm(cfg.Planner.Algorithm)
	if err != nil {
		log.Fatalf("planner: %v", err)
	}

	seed := cfg.Engine.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	logger.Info("engine starting",
		zap.Int64("seed", seed), zap.Stringer("algorithm", algo))

	// ---- Board ----
	g, start, end, spawns, err := buildBoard(cfg, rng, logger)
	if err != nil {
		log.Fatalf("board: %v", err)
	}

	// ---- Session ----
	sess, err := sim.New(g, start, end, sim.Config{
		Algorithm:    algo,
		ObstacleTick: time.Duration(cfg.Sim.ObstacleTickMs) * time.Millisecond,
		TrainTick:    time.Duration(cfg.Sim.TrainTickMs) * time.Millisecond,
		Learning: rl.Config{
			Alpha:    cfg.Learning.Alpha,
			Gamma:    cfg.Learning.Gamma,
			Epsilon:  cfg.Learning.Epsilon,
			Episodes: cfg.Learning.Episodes,
		},
		RNG:    rng,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("session: %v", err)
	}

	// ---- Obstacles ----
	for i, oc := range spawns {
		if _, err := sess.AddObstacle(oc); err != nil {
			logger.Warn("obstacle spawn failed", zap.Int("index", i), zap.Error(err))
		}
	}
	if cfg.Engine.Scenario == "" {
		patterns := []obstacle.Pattern{
			obstacle.Linear, obstacle.Random, obstacle.Patrol, obstacle.Chase,
		}
		for i := 0; i < cfg.Engine.Obstacles; i++ {
			if _, err := sess.AddRandomObstacle(patterns[i%len(patterns)]); err != nil {
				logger.Warn("obstacle spawn failed", zap.Error(err))
			}
		}
	}
	logger.Info("board ready", zap.Int("obstacles", len(sess.Obstacles())))
	fmt.Print(sess.GridSnapshot())

	// ---- Training ----
	if err := sess.StartTraining(); err != nil {
		log.Fatalf("training: %v", err)
	}
	var pacer *rate.Limiter
	if cfg.Sim.TrainRate > 0 {
		pacer = rate.NewLimiter(rate.Limit(cfg.Sim.TrainRate), 1)
	}
	progress := rate.NewLimiter(rate.Limit(cfg.Log.ProgressRPS), 1)
	ctx := context.Background()
	for sess.IsTraining() {
		if pacer != nil {
			if err := pacer.Wait(ctx); err != nil {
				break
			}
		}
		sess.TickTraining()
		if progress.Allow() {
			m := sess.TrainingMetrics()
			logger.Info("training progress",
				zap.Int("episode", m.Episode),
				zap.Int("episodes", m.Episodes),
				zap.Float64("epsilon", m.Epsilon),
				zap.Float64("success_rate", m.SuccessRate))
		}
	}

	route := sess.VisualizeLearnedPath()
	m := sess.TrainingMetrics()
	logger.Info("greedy rollout",
		zap.Int("length", len(route)),
		zap.Float64("success_rate", m.SuccessRate),
		zap.Float64("avg_steps", m.AverageSteps),
		zap.Int("heat_cells", len(sess.HeatMap())))
	fmt.Print(sess.GridSnapshot())

	// ---- Adaptive run ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	if err := sess.StartAdaptive(); err != nil {
		logger.Warn("adaptive mode unavailable", zap.Error(err))
		return
	}
	go sess.Run()

	sched.AddTicker("status", time.Second, func() {
		pm := sess.PlannerMetrics()
		logger.Info("adaptive status",
			zap.Int("path_length", pm.PathLength),
			zap.Int("replans", pm.Replans),
			zap.Bool("replanning", pm.NeedsReplan),
			zap.Float64("success_rate", pm.SuccessRate),
			zap.Int("danger_cells", len(sess.DangerZones())))
	})
	sched.AddDelay("shutdown", time.Duration(cfg.Sim.AdaptiveRunS)*time.Second, sess.Stop)

	<-sess.StopChan()
	fmt.Print(sess.GridSnapshot())
	pm := sess.PlannerMetrics()
	logger.Info("engine stopped",
		zap.Int("replans", pm.Replans),
		zap.Int("failed", pm.Failed),
		zap.Float64("success_rate", pm.SuccessRate))
}

// buildBoard creates the playing board from the configured scenario
// file, or generates a random one that provably has an initial route.
// Scenario obstacle spawns are returned for the session to place.
func buildBoard(cfg *config.Config, rng *rand.Rand, logger *zap.Logger) (*grid.Grid, grid.Position, grid.Position, []obstacle.Config, error) {
	if cfg.Engine.Scenario != "" {
		sc, err := scenario.Load(cfg.Engine.Scenario)
		if err != nil {
			return nil, grid.Position{}, grid.Position{}, nil, err
		}
		g, err := grid.New(sc.Size)
		if err != nil {
			return nil, grid.Position{}, grid.Position{}, nil, err
		}
		if err := sc.Apply(g); err != nil {
			return nil, grid.Position{}, grid.Position{}, nil, err
		}
		start := grid.Position{Row: sc.Start.Row, Col: sc.Start.Col}
		end := grid.Position{Row: sc.End.Row, Col: sc.End.Col}
		spawns := make([]obstacle.Config, 0, len(sc.Obstacles))
		for i, spec := range sc.Obstacles {
			oc, err := spec.Config()
			if err != nil {
				return nil, grid.Position{}, grid.Position{}, nil,
					fmt.Errorf("obstacle %d: %w", i, err)
			}
			spawns = append(spawns, oc)
		}
		logger.Info("scenario loaded",
			zap.String("file", cfg.Engine.Scenario),
			zap.Int("size", sc.Size),
			zap.Int("walls", len(sc.Walls)),
			zap.Int("obstacles", len(spawns)))
		return g, start, end, spawns, nil
	}

	size := cfg.Engine.GridSize
	g, err := grid.New(size)
	if err != nil {
		return nil, grid.Position{}, grid.Position{}, nil, err
	}
	start := grid.Position{}
	end := grid.Position{Row: size - 1, Col: size - 1}
	for attempt := 1; ; attempt++ {
		g.SetType(start, grid.Start)
		g.SetType(end, grid.End)
		walls := scenario.GenerateWalls(rng, g, cfg.Engine.WallDensity)
		if routeExists(g, start, end) {
			logger.Info("board generated",
				zap.Int("size", size),
				zap.Int("walls", walls),
				zap.Int("attempt", attempt))
			return g, start, end, nil, nil
		}
		if attempt == boardAttempts {
			return nil, grid.Position{}, grid.Position{}, nil,
				fmt.Errorf("no traversable board after %d attempts", boardAttempts)
		}
		g.Reset()
	}
}

// routeExists probes the fresh board with a throwaway search and wipes
// the marks it leaves.
func routeExists(g *grid.Grid, start, end grid.Position) bool {
	probe, err := planner.New(g, start, end, planner.Config{Algorithm: planner.BFS})
	if err != nil {
		return false
	}
	found := len(probe.FindPath()) > 0
	g.ClearSearchMarks()
	return found
}
