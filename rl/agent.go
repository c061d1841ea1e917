// Package rl trains a tabular Q-learning policy over the shared board.
// The agent shares the four-direction action space with the rest of the
// engine and is driven one transition per external tick, so a host can
// interleave training with obstacle simulation and rendering.
package rl

import (
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/aokimitsu/gridpath/grid"
)

// Default hyperparameters.
const (
	DefaultAlpha    = 0.1
	DefaultGamma    = 0.9
	DefaultEpsilon  = 0.3
	DefaultEpisodes = 500

	epsilonDecay = 0.99
	epsilonFloor = 0.1
)

// Reward signal.
const (
	stepReward    = -0.1
	illegalReward = -1.0
	goalReward    = 10.0
)

// actionValues holds one Q-value per direction, indexed by
// grid.Direction.
type actionValues [len(grid.AllDirections)]float64

func (v actionValues) max() float64 {
	m := v[0]
	for _, x := range v[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

// argmax prefers the lowest direction index on ties.
func (v actionValues) argmax() grid.Direction {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return grid.Direction(best)
}

// Episode is the record of one finished training episode.
type Episode struct {
	Steps   int
	Reward  float64
	Success bool
}

// Config tunes an Agent. Zero values fall back to the defaults above.
type Config struct {
	Alpha    float64 // learning rate
	Gamma    float64 // discount factor
	Epsilon  float64 // initial exploration rate
	Episodes int     // episode budget per training run

	// RNG seeds the Q-table and drives epsilon-greedy sampling.
	// Defaults to a time-seeded source.
	RNG    *rand.Rand
	Logger *zap.Logger
}

// Agent is a tabular Q-learner. Not safe for concurrent use; the host
// serializes TrainStep with any grid mutation.
type Agent struct {
	g   *grid.Grid
	log *zap.Logger
	rng *rand.Rand

	alpha    float64
	gamma    float64
	epsilon  float64
	episodes int

	q map[grid.Position]actionValues

	start    grid.Position
	end      grid.Position
	pos      grid.Position
	training bool
	episode  int
	step     int
	reward   float64

	history []Episode
}

func New(g *grid.Grid, cfg Config) (*Agent, error) {
	if g == nil {
		return nil, fmt.Errorf("rl: nil grid")
	}
	if cfg.Alpha == 0 {
		cfg.Alpha = DefaultAlpha
	}
	if cfg.Gamma == 0 {
		cfg.Gamma = DefaultGamma
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = DefaultEpsilon
	}
	if cfg.Episodes <= 0 {
		cfg.Episodes = DefaultEpisodes
	}
	if cfg.RNG == nil {
		cfg.RNG = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Agent{
		g:        g,
		log:      cfg.Logger,
		rng:      cfg.RNG,
		alpha:    cfg.Alpha,
		gamma:    cfg.Gamma,
		epsilon:  cfg.Epsilon,
		episodes: cfg.Episodes,
	}, nil
}

// ---- Training session ----

// StartTraining opens a training run toward end. Episode counters and
// history reset, and a fresh Q-table is seeded with values in [0, 0.1)
// for every traversable cell; states never seeded read as zero vectors.
// The exploration rate carries over from any previous run.
func (a *Agent) StartTraining(start, end grid.Position) error {
	if !a.g.InBounds(start) || !a.g.InBounds(end) {
		return fmt.Errorf("rl: endpoints %v, %v out of bounds", start, end)
	}
	if start == end {
		return fmt.Errorf("rl: start and end coincide at %v", start)
	}

	a.start = start
	a.end = end
	a.pos = start
	a.training = true
	a.episode = 0
	a.step = 0
	a.reward = 0
	a.history = nil

	size := a.g.Size()
	a.q = make(map[grid.Position]actionValues, size*size)
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			p := grid.Position{Row: r, Col: c}
			if !a.g.CanTraverse(p) {
				continue
			}
			var v actionValues
			for i := range v {
				v[i] = a.rng.Float64() * 0.1
			}
			a.q[p] = v
		}
	}

	a.log.Info("training started",
		zap.Stringer("start", start),
		zap.Stringer("end", end),
		zap.Int("episodes", a.episodes))
	return nil
}

// StopTraining forces the run out of the training state. The partially
// trained policy stays queryable.
func (a *Agent) StopTraining() {
	if !a.training {
		return
	}
	a.training = false
	a.log.Info("training stopped", zap.Int("episode", a.episode))
}

// TrainStep advances exactly one environment transition and reports
// whether the whole run is complete, including on the call that
// finishes the final episode. Without an open training run it is a
// no-op reporting complete.
//
// Stepping into a wall, an obstacle or off the board costs -1.0 and
// leaves the agent in place; any other step costs -0.1; reaching the
// end pays +10.0 and finishes the episode. An episode that exceeds
// 2*N*N steps is cut off and recorded as unsuccessful.
func (a *Agent) TrainStep() bool {
	if !a.training {
		return true
	}

	if a.step == 0 {
		a.pos = a.start
	}

	state := a.pos
	action := a.chooseAction(state)
	next := state.Step(action)

	reward := stepReward
	done := false
	if !a.g.CanTraverse(next) {
		reward = illegalReward
		next = state
	} else {
		a.pos = next
		if next == a.end {
			reward = goalReward
			done = true
		} else if next != a.start {
			a.g.SetType(next, grid.Visited)
		}
	}

	q := a.q[state]
	q[action] += a.alpha * (reward + a.gamma*a.q[next].max() - q[action])
	a.q[state] = q

	a.step++
	a.reward += reward

	if done || a.step > 2*a.g.Size()*a.g.Size() {
		a.finishEpisode(done)
		if a.episode >= a.episodes {
			a.training = false
			a.log.Info("training complete",
				zap.Int("episodes", a.episode),
				zap.Float64("success_rate", a.SuccessRate()))
			return true
		}
	}
	return false
}

func (a *Agent) finishEpisode(success bool) {
	a.history = append(a.history, Episode{
		Steps:   a.step,
		Reward:  a.reward,
		Success: success,
	})
	a.log.Debug("episode finished",
		zap.Int("episode", a.episode),
		zap.Int("steps", a.step),
		zap.Float64("reward", a.reward),
		zap.Bool("success", success),
		zap.Float64("epsilon", a.epsilon))

	a.episode++
	a.step = 0
	a.reward = 0
	a.epsilon *= epsilonDecay
	if a.epsilon < epsilonFloor {
		a.epsilon = epsilonFloor
	}
}

// chooseAction is epsilon-greedy over the current Q-values.
func (a *Agent) chooseAction(state grid.Position) grid.Direction {
	if a.rng.Float64() < a.epsilon {
		return grid.Direction(a.rng.Intn(len(grid.AllDirections)))
	}
	return a.q[state].argmax()
}

// ---- Policy queries ----

// FindPath rolls the greedy policy out from start: argmax action per
// cell, at most N*N steps. The walk stops short of the end when the
// policy steers into an illegal cell, leaving a partial trajectory that
// signals the policy has not converged.
func (a *Agent) FindPath() []grid.Position {
	path := []grid.Position{a.start}
	cur := a.start
	maxSteps := a.g.Size() * a.g.Size()
	for steps := 0; cur != a.end && steps < maxSteps; steps++ {
		next := cur.Step(a.q[cur].argmax())
		if !a.g.CanTraverse(next) {
			break
		}
		cur = next
		path = append(path, cur)
	}
	return path
}

// HeatMap projects max-Q per traversable cell, normalized against the
// strongest value in the table. Nil when that maximum is at or below
// 0.1, the level of the untrained seed noise; cells only appear above a
// normalized 0.1. Start and end are excluded. Pure query.
func (a *Agent) HeatMap() map[grid.Position]float64 {
	maxQ := 0.0
	for _, v := range a.q {
		if m := v.max(); m > maxQ {
			maxQ = m
		}
	}
	if maxQ <= 0.1 {
		return nil
	}

	heat := make(map[grid.Position]float64)
	size := a.g.Size()
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			p := grid.Position{Row: r, Col: c}
			if !a.g.CanTraverse(p) || p == a.start || p == a.end {
				continue
			}
			if n := a.q[p].max() / maxQ; n > 0.1 {
				heat[p] = n
			}
		}
	}
	return heat
}

// ---- Progress ----

// Metrics is a snapshot of training progress.
type Metrics struct {
	Training     bool
	Episode      int
	Episodes     int
	Epsilon      float64
	SuccessRate  float64
	AverageSteps float64
}

func (a *Agent) Metrics() Metrics {
	return Metrics{
		Training:     a.training,
		Episode:      a.episode,
		Episodes:     a.episodes,
		Epsilon:      a.epsilon,
		SuccessRate:  a.SuccessRate(),
		AverageSteps: a.AverageSteps(),
	}
}

func (a *Agent) IsTraining() bool    { return a.training }
func (a *Agent) CurrentEpisode() int { return a.episode }
func (a *Agent) Episodes() int       { return a.episodes }
func (a *Agent) Epsilon() float64    { return a.epsilon }

// SetEpisodes overrides the episode budget for the next run. Ignored
// while a run is open.
func (a *Agent) SetEpisodes(n int) {
	if a.training || n <= 0 {
		return
	}
	a.episodes = n
}

// History returns a copy of the per-episode records of the current run.
func (a *Agent) History() []Episode {
	out := make([]Episode, len(a.history))
	copy(out, a.history)
	return out
}

// SuccessRate is the share of recorded episodes that reached the end,
// 0 before the first one finishes.
func (a *Agent) SuccessRate() float64 {
	if len(a.history) == 0 {
		return 0
	}
	n := 0
	for _, e := range a.history {
		if e.Success {
			n++
		}
	}
	return float64(n) / float64(len(a.history))
}

// AverageSteps is the mean episode length, 0 before the first episode
// finishes.
func (a *Agent) AverageSteps() float64 {
	if len(a.history) == 0 {
		return 0
	}
	sum := 0
	for _, e := range a.history {
		sum += e.Steps
	}
	return float64(sum) / float64(len(a.history))
}
