// Package sim drives one engine instance: a grid shared by the
// adaptive planner and the learning agent, advanced by discrete ticks.
// A Session owns the tick loop and serializes every mutation behind one
// lock, so external snapshot readers never observe a half-applied tick.
package sim

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aokimitsu/gridpath/grid"
	"github.com/aokimitsu/gridpath/obstacle"
	"github.com/aokimitsu/gridpath/planner"
	"github.com/aokimitsu/gridpath/rl"
)

// Tick cadence defaults.
const (
	DefaultObstacleTick = 300 * time.Millisecond
	DefaultTrainTick    = 50 * time.Millisecond
)

// placement attempts before AddRandomObstacle gives up
const placementAttempts = 100

// Config tunes a Session. Zero values fall back to defaults. The
// Learning sub-config inherits the session's RNG and logger unless it
// carries its own.
type Config struct {
	Algorithm    planner.Algorithm
	ObstacleTick time.Duration
	TrainTick    time.Duration
	Learning     rl.Config

	RNG    *rand.Rand
	Logger *zap.Logger
}

// ObstacleInfo is the client-visible snapshot of one obstacle.
type ObstacleInfo struct {
	ID       string
	Pattern  obstacle.Pattern
	Position grid.Position
	Facing   grid.Direction
	Speed    int
}

// PlannerMetrics is the client-visible planner state.
type PlannerMetrics struct {
	Replans     int
	Successful  int
	Failed      int
	SuccessRate float64
	PathLength  int
	NeedsReplan bool
}

// Session manages one board with its own tick loop.
type Session struct {
	g       *grid.Grid
	planner *planner.Planner
	agent   *rl.Agent
	rng     *rand.Rand
	log     *zap.Logger

	obstacleTick time.Duration
	trainTick    time.Duration

	mu       sync.RWMutex
	adaptive bool
	training bool
	stopCh   chan struct{}
}

// New builds a Session over g but does not start the tick loop.
func New(g *grid.Grid, start, end grid.Position, cfg Config) (*Session, error) {
	if cfg.ObstacleTick <= 0 {
		cfg.ObstacleTick = DefaultObstacleTick
	}
	if cfg.TrainTick <= 0 {
		cfg.TrainTick = DefaultTrainTick
	}
	if cfg.RNG == nil {
		cfg.RNG = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Learning.RNG == nil {
		cfg.Learning.RNG = cfg.RNG
	}
	if cfg.Learning.Logger == nil {
		cfg.Learning.Logger = cfg.Logger
	}

	p, err := planner.New(g, start, end, planner.Config{
		Algorithm: cfg.Algorithm,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("sim: planner: %w", err)
	}
	a, err := rl.New(g, cfg.Learning)
	if err != nil {
		return nil, fmt.Errorf("sim: agent: %w", err)
	}

	return &Session{
		g:            g,
		planner:      p,
		agent:        a,
		rng:          cfg.RNG,
		log:          cfg.Logger,
		obstacleTick: cfg.ObstacleTick,
		trainTick:    cfg.TrainTick,
		stopCh:       make(chan struct{}),
	}, nil
}

// ---- Tick loop ----

// Run drives the obstacle and training tickers until Stop. Call in a
// goroutine.
func (s *Session) Run() {
	obstacles := time.NewTicker(s.obstacleTick)
	training := time.NewTicker(s.trainTick)
	defer obstacles.Stop()
	defer training.Stop()
	for {
		select {
		case <-obstacles.C:
			s.TickObstacles()
		case <-training.C:
			s.TickTraining()
		case <-s.stopCh:
			return
		}
	}
}

// Stop signals the tick loop to exit.
func (s *Session) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

// StopChan returns a channel closed when this session is stopped. Use
// it to cancel goroutines that must not outlive the session.
func (s *Session) StopChan() <-chan struct{} {
	return s.stopCh
}

// TickObstacles advances every obstacle one step and replans when a
// move or a latched collision flag calls for it. A failed replan keeps
// the flag latched so the next tick retries.
func (s *Session) TickObstacles() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.adaptive {
		return
	}

	moved := s.planner.UpdateObstacles(s.planner.Start())
	if moved || s.planner.NeedsReplanning() {
		if !s.planner.AdaptPath() {
			s.log.Warn("replan failed, keeping stale path",
				zap.Int("obstacles", len(s.planner.Obstacles())))
		}
	}
}

// TickTraining advances one training transition. When the run
// completes, the trail marks are wiped and the summary logged.
func (s *Session) TickTraining() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.training {
		return
	}

	if s.agent.TrainStep() {
		s.training = false
		s.g.ClearSearchMarks()
		m := s.agent.Metrics()
		s.log.Info("training run finished",
			zap.Int("episodes", m.Episode),
			zap.Float64("success_rate", m.SuccessRate),
			zap.Float64("avg_steps", m.AverageSteps))
	}
}

// ---- Mode control ----

// StartAdaptive clears stale markings, verifies an initial path exists
// around the current obstacles and opens adaptive mode. Requires at
// least one obstacle. Already running is a no-op.
func (s *Session) StartAdaptive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adaptive {
		return nil
	}

	if len(s.planner.Obstacles()) == 0 {
		return fmt.Errorf("sim: adaptive mode needs at least one obstacle")
	}
	s.g.ClearSearchMarks()
	if !s.planner.AdaptPath() {
		return fmt.Errorf("sim: no initial path from %v to %v",
			s.planner.Start(), s.planner.End())
	}

	s.adaptive = true
	s.log.Info("adaptive mode started",
		zap.Int("obstacles", len(s.planner.Obstacles())),
		zap.Int("path_length", len(s.planner.Path())))
	return nil
}

// StopAdaptive closes adaptive mode. The current path stays on the
// board.
func (s *Session) StopAdaptive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.adaptive {
		return
	}
	s.adaptive = false
	s.log.Info("adaptive mode stopped")
}

// StartTraining clears stale markings and opens a training run between
// the planner's endpoints. Already training is a no-op.
func (s *Session) StartTraining() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.training {
		return nil
	}

	s.g.ClearSearchMarks()
	if err := s.agent.StartTraining(s.planner.Start(), s.planner.End()); err != nil {
		return err
	}
	s.training = true
	return nil
}

// StopTraining aborts an open training run and wipes the trail marks.
func (s *Session) StopTraining() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.training {
		return
	}
	s.agent.StopTraining()
	s.training = false
	s.g.ClearSearchMarks()
}

func (s *Session) IsAdaptive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adaptive
}

func (s *Session) IsTraining() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.training
}

// ---- Board editing ----

// AddObstacle spawns an obstacle from cfg, wiring in the session RNG
// when cfg carries none. Adaptive mode stops first, as the new spawn
// invalidates its collision picture.
func (s *Session) AddObstacle(cfg obstacle.Config) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addObstacleLocked(cfg)
}

func (s *Session) addObstacleLocked(cfg obstacle.Config) (string, error) {
	if s.adaptive {
		s.adaptive = false
		s.log.Info("adaptive mode stopped for obstacle edit")
	}
	if cfg.RNG == nil {
		cfg.RNG = s.rng
	}
	o, err := obstacle.New(s.g, cfg)
	if err != nil {
		return "", err
	}
	s.planner.AddObstacle(o)
	s.log.Info("obstacle added",
		zap.String("id", o.ID()),
		zap.Stringer("pattern", o.Pattern()),
		zap.Stringer("pos", o.Position()))
	return o.ID(), nil
}

// AddRandomObstacle spawns a pattern obstacle on a random empty cell,
// trying up to 100 positions before giving up.
func (s *Session) AddRandomObstacle(pattern obstacle.Pattern) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.g.Size()
	for attempts := 0; attempts < placementAttempts; attempts++ {
		p := grid.Position{Row: s.rng.Intn(size), Col: s.rng.Intn(size)}
		if s.g.At(p).Type != grid.Empty {
			continue
		}
		return s.addObstacleLocked(obstacle.Config{
			Pattern:      pattern,
			Position:     p,
			RandomFacing: true,
		})
	}
	return "", fmt.Errorf("sim: no free cell for an obstacle after %d attempts", placementAttempts)
}

// RemoveObstacle removes one obstacle by ID and restores its cell.
func (s *Session) RemoveObstacle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planner.RemoveObstacle(id)
}

// ClearObstacles removes every obstacle and restores their cells.
func (s *Session) ClearObstacles() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planner.ClearObstacles()
}

// SetWall raises a wall on an empty cell.
func (s *Session) SetWall(p grid.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.g.SetWall(p)
}

// ClearWall removes a wall.
func (s *Session) ClearWall(p grid.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.g.ClearWall(p)
}

// ClearSearchState wipes visited/considering/path marks, keeping
// walls, endpoints and obstacles.
func (s *Session) ClearSearchState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.g.ClearSearchMarks()
}

// ---- Planning surface ----

// FindPath runs the configured algorithm between the endpoints.
func (s *Session) FindPath() []grid.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planner.FindPath()
}

// FindPathUsing runs an explicit algorithm between the endpoints.
func (s *Session) FindPathUsing(algo planner.Algorithm) []grid.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planner.FindPathUsing(algo)
}

// VisualizeLearnedPath stamps the greedy policy rollout onto the board
// and returns it. Interior cells get the path mark; a partial rollout
// is stamped as far as it goes.
func (s *Session) VisualizeLearnedPath() []grid.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.g.ClearSearchMarks()
	path := s.agent.FindPath()
	for i := 1; i < len(path)-1; i++ {
		s.g.SetType(path[i], grid.Path)
	}
	return path
}

// ---- Snapshots ----

// GridSnapshot renders the board as ASCII, one row per line.
func (s *Session) GridSnapshot() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.g.String()
}

// Path returns a copy of the planner's current path.
func (s *Session) Path() []grid.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.planner.Path()
}

func (s *Session) PlannerMetrics() PlannerMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.planner.Stats()
	return PlannerMetrics{
		Replans:     st.Replans,
		Successful:  st.Successful,
		Failed:      st.Failed,
		SuccessRate: s.planner.SuccessRate(),
		PathLength:  len(s.planner.Path()),
		NeedsReplan: s.planner.NeedsReplanning(),
	}
}

func (s *Session) TrainingMetrics() rl.Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agent.Metrics()
}

// HeatMap projects the learned Q-values, empty before any training.
func (s *Session) HeatMap() map[grid.Position]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agent.HeatMap()
}

// DangerZones projects the obstacle predictions into intensities.
func (s *Session) DangerZones() map[grid.Position]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.planner.DangerZones()
}

// Trails returns each obstacle's recent positions, newest first.
func (s *Session) Trails() map[string][]grid.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trails := make(map[string][]grid.Position)
	for _, o := range s.planner.Obstacles() {
		trails[o.ID()] = o.Trail()
	}
	return trails
}

// Obstacles returns a snapshot of every obstacle on the board.
func (s *Session) Obstacles() []ObstacleInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obs := s.planner.Obstacles()
	out := make([]ObstacleInfo, 0, len(obs))
	for _, o := range obs {
		out = append(out, ObstacleInfo{
			ID:       o.ID(),
			Pattern:  o.Pattern(),
			Position: o.Position(),
			Facing:   o.Facing(),
			Speed:    o.Speed(),
		})
	}
	return out
}
