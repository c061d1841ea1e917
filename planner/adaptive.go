// Package planner computes and maintains a path between the start and
// end cells while obstacles move. It reruns its search whenever an
// obstacle lands on the current path, or is predicted to cross it
// within the next few ticks.
package planner

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/aokimitsu/gridpath/grid"
	"github.com/aokimitsu/gridpath/obstacle"
)

// PredictionSteps is how far ahead obstacle trajectories are checked
// against the current path.
const PredictionSteps = 5

// Danger-zone intensity for the first predicted step and its falloff
// per further step.
const (
	dangerMax   = 0.8
	dangerDecay = 0.1
)

// Config tunes a Planner. The zero value searches with A* and logs
// nowhere.
type Config struct {
	Algorithm Algorithm
	Logger    *zap.Logger
}

// Planner owns the current path, the obstacle registry and the
// replanning flag. Calls must not run concurrently with anything else
// mutating the grid.
type Planner struct {
	g     *grid.Grid
	log   *zap.Logger
	algo  Algorithm
	start grid.Position
	end   grid.Position

	obstacles []*obstacle.Obstacle

	path    []grid.Position
	pathSet map[grid.Position]bool

	// needsReplanning latches when the path is invalidated and only a
	// successful replan clears it.
	needsReplanning bool

	replans    int
	successful int
	failed     int
}

// New creates a planner for the given start and end cells.
func New(g *grid.Grid, start, end grid.Position, cfg Config) (*Planner, error) {
	if g == nil {
		return nil, fmt.Errorf("planner: nil grid")
	}
	if !g.InBounds(start) || !g.InBounds(end) {
		return nil, fmt.Errorf("planner: start %v or end %v out of bounds", start, end)
	}
	if start == end {
		return nil, fmt.Errorf("planner: start and end coincide at %v", start)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Planner{
		g:     g,
		log:   cfg.Logger,
		algo:  cfg.Algorithm,
		start: start,
		end:   end,
	}, nil
}

func (p *Planner) Start() grid.Position { return p.start }
func (p *Planner) End() grid.Position   { return p.end }

// ---- Obstacle registry ----

// AddObstacle registers an obstacle; its cell is already claimed by the
// obstacle itself.
func (p *Planner) AddObstacle(o *obstacle.Obstacle) {
	if o == nil {
		return
	}
	p.obstacles = append(p.obstacles, o)
	p.log.Debug("obstacle added",
		zap.String("id", o.ID()),
		zap.Stringer("pattern", o.Pattern()),
		zap.Stringer("pos", o.Position()))
}

// RemoveObstacle lifts the obstacle with the given id off the grid and
// unregisters it. Reports whether it was found.
func (p *Planner) RemoveObstacle(id string) bool {
	for i, o := range p.obstacles {
		if o.ID() != id {
			continue
		}
		o.Remove()
		p.obstacles = append(p.obstacles[:i], p.obstacles[i+1:]...)
		p.log.Debug("obstacle removed", zap.String("id", id))
		return true
	}
	return false
}

// ClearObstacles lifts every obstacle off the grid, restoring the
// covered cell types.
func (p *Planner) ClearObstacles() {
	for _, o := range p.obstacles {
		o.Remove()
	}
	p.obstacles = nil
}

// Obstacles returns the registered obstacles.
func (p *Planner) Obstacles() []*obstacle.Obstacle {
	out := make([]*obstacle.Obstacle, len(p.obstacles))
	copy(out, p.obstacles)
	return out
}

// ---- Tick path ----

// UpdateObstacles advances every obstacle one tick; target feeds the
// Chase pattern. Each obstacle that moved is checked against the
// current path, directly and through its predictions, latching the
// replanning flag on a hit. Reports whether any obstacle moved.
func (p *Planner) UpdateObstacles(target grid.Position) bool {
	anyMoved := false
	for _, o := range p.obstacles {
		if !o.Move(target) {
			continue
		}
		anyMoved = true
		p.checkPathCollision(o)
	}
	return anyMoved
}

func (p *Planner) checkPathCollision(o *obstacle.Obstacle) {
	if len(p.path) == 0 {
		return
	}
	if p.pathSet[o.Position()] {
		p.needsReplanning = true
		p.log.Debug("obstacle on path",
			zap.String("id", o.ID()),
			zap.Stringer("pos", o.Position()))
		return
	}
	for i, pred := range o.PredictPath(PredictionSteps) {
		if p.pathSet[pred] {
			p.needsReplanning = true
			p.log.Debug("obstacle predicted to cross path",
				zap.String("id", o.ID()),
				zap.Stringer("pos", pred),
				zap.Int("steps_ahead", i+1))
			return
		}
	}
}

// NeedsReplanning reports whether the current path has been
// invalidated.
func (p *Planner) NeedsReplanning() bool {
	return p.needsReplanning
}

// ---- Planning ----

// FindPath searches with the configured algorithm. On success the
// current path is replaced, the replanning flag cleared, and the
// start→end sequence returned; an unreachable end leaves the previous
// path in place and returns nil. Either way the search scratch and
// markings on the grid are rebuilt.
func (p *Planner) FindPath() []grid.Position {
	return p.FindPathUsing(p.algo)
}

// FindPathUsing is FindPath with an explicit algorithm. Greedy results
// are not guaranteed shortest.
func (p *Planner) FindPathUsing(algo Algorithm) []grid.Position {
	p.g.ResetScratch()
	p.g.ClearSearchMarks()

	var found bool
	switch algo {
	case AStar:
		found = p.runAStar()
	case Dijkstra:
		found = p.runDijkstra()
	case Greedy:
		found = p.runGreedy()
	case BFS:
		found = p.runBFS()
	}
	if !found {
		p.failed++
		p.log.Warn("no path to end",
			zap.Stringer("algorithm", algo),
			zap.Stringer("start", p.start),
			zap.Stringer("end", p.end))
		return nil
	}

	p.setPath(p.reconstruct())
	p.needsReplanning = false
	p.successful++
	p.log.Debug("path found",
		zap.Stringer("algorithm", algo),
		zap.Int("length", len(p.path)))
	return p.Path()
}

// AdaptPath keeps the current path alive. A valid path is a no-op
// returning true. A missing or invalidated one triggers a fresh search:
// success swaps the path in and counts a replan, failure leaves the
// stale path for the caller to deal with and returns false.
func (p *Planner) AdaptPath() bool {
	if len(p.path) > 0 && !p.needsReplanning {
		return true
	}
	if len(p.FindPath()) == 0 {
		return false
	}
	p.replans++
	p.log.Info("path replanned",
		zap.Int("replans", p.replans),
		zap.Int("length", len(p.path)))
	return true
}

// Path returns a copy of the current path, start to end inclusive, or
// nil when none is held.
func (p *Planner) Path() []grid.Position {
	if len(p.path) == 0 {
		return nil
	}
	out := make([]grid.Position, len(p.path))
	copy(out, p.path)
	return out
}

func (p *Planner) setPath(path []grid.Position) {
	p.path = path
	p.pathSet = make(map[grid.Position]bool, len(path))
	for _, pos := range path {
		p.pathSet[pos] = true
	}
}

// ---- Introspection ----

// DangerZones projects every obstacle's predicted positions into an
// intensity map in (0, 1]: the next step scores 0.8, each further step
// 0.1 less. Overlapping predictions keep the highest intensity. Walls,
// obstacle cells and the endpoints are never included. Pure query, no
// planning effect.
func (p *Planner) DangerZones() map[grid.Position]float64 {
	zones := make(map[grid.Position]float64)
	for _, o := range p.obstacles {
		for i, pos := range o.PredictPath(PredictionSteps) {
			if !p.g.InBounds(pos) {
				continue
			}
			switch p.g.At(pos).Type {
			case grid.Wall, grid.Obstacle:
				continue
			}
			if pos == p.start || pos == p.end {
				continue
			}
			intensity := dangerMax - dangerDecay*float64(i)
			if intensity > zones[pos] {
				zones[pos] = intensity
			}
		}
	}
	return zones
}

// Stats are the planner's running counters.
type Stats struct {
	Replans    int
	Successful int
	Failed     int
}

func (p *Planner) Stats() Stats {
	return Stats{
		Replans:    p.replans,
		Successful: p.successful,
		Failed:     p.failed,
	}
}

// SuccessRate is successful searches over all searches, 0 before the
// first one.
func (p *Planner) SuccessRate() float64 {
	total := p.successful + p.failed
	if total == 0 {
		return 0
	}
	return float64(p.successful) / float64(total)
}
