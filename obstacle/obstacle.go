// Package obstacle simulates moving obstacles on the shared grid. Each
// obstacle advances one cell at a time according to its movement pattern
// and can project its next few positions for the planner's collision
// checks.
package obstacle

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aokimitsu/gridpath/grid"
)

// Pattern selects the movement policy of an obstacle.
type Pattern uint8

const (
	Linear Pattern = iota // advance, bounce 180° when blocked
	Random                // occasional direction change, random detours
	Patrol                // oscillate along a fixed segment
	Chase                 // close in on the move target
)

func (p Pattern) String() string {
	switch p {
	case Linear:
		return "linear"
	case Random:
		return "random"
	case Patrol:
		return "patrol"
	case Chase:
		return "chase"
	}
	return "unknown"
}

// ParsePattern maps a scenario or config name to a Pattern.
func ParsePattern(s string) (Pattern, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear":
		return Linear, nil
	case "random":
		return Random, nil
	case "patrol":
		return Patrol, nil
	case "chase":
		return Chase, nil
	}
	return Linear, fmt.Errorf("obstacle: unknown pattern %q (want linear, random, patrol or chase)", s)
}

const (
	// chance that a Random obstacle re-rolls its facing before moving
	randomTurnChance = 0.2
	// random detour attempts before giving up a blocked tick
	randomRetries = 4
	// Random/Chase predictions extrapolate this many entries, then hold
	extrapolateSteps = 3

	defaultTrailLength = 5
	maxTrailLength     = 10
	patrolHalfSpan     = 2
)

// Config describes a new obstacle. Zero values fall back to defaults:
// speed 1, trail length 5, horizontal patrol segment col±2 clamped to
// the board.
type Config struct {
	Pattern  Pattern
	Position grid.Position

	// Facing is the initial direction. Set RandomFacing to draw one
	// from the RNG instead.
	Facing       grid.Direction
	RandomFacing bool

	// Speed is the number of ticks between moves, minimum 1.
	Speed int

	TrailLength int

	// Patrol segment along the chosen axis. Both zero means "derive
	// from the spawn position".
	PatrolStart    int
	PatrolEnd      int
	PatrolVertical bool

	// RNG drives random facings, turns and detours. Nil gets a
	// time-seeded source; tests inject a fixed seed.
	RNG *rand.Rand
}

// Obstacle occupies exactly one grid cell and remembers the cell's
// prior type so it can be restored when the obstacle leaves.
type Obstacle struct {
	id      string
	g       *grid.Grid
	pattern Pattern

	pos      grid.Position
	dir      grid.Direction
	prevType grid.CellType

	speed     int
	moveCount int

	patrolStart    int
	patrolEnd      int
	patrolVertical bool

	trail    []grid.Position
	trailLen int

	rng *rand.Rand
}

// New places an obstacle on the grid. The target cell must be free
// (empty or a search marking), or an error is returned.
func New(g *grid.Grid, cfg Config) (*Obstacle, error) {
	if g == nil {
		return nil, fmt.Errorf("obstacle: nil grid")
	}
	if cfg.Pattern > Chase {
		return nil, fmt.Errorf("obstacle: unknown pattern %d", cfg.Pattern)
	}
	if !g.CanOccupy(cfg.Position) {
		return nil, fmt.Errorf("obstacle: cell %v is not free", cfg.Position)
	}
	if cfg.RNG == nil {
		cfg.RNG = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	o := &Obstacle{
		id:       uuid.NewString(),
		g:        g,
		pattern:  cfg.Pattern,
		pos:      cfg.Position,
		dir:      cfg.Facing,
		speed:    1,
		trailLen: defaultTrailLength,
		rng:      cfg.RNG,
	}
	if cfg.RandomFacing {
		o.dir = grid.Direction(o.rng.Intn(4))
	}
	if cfg.Speed > 0 {
		o.SetSpeed(cfg.Speed)
	}
	if cfg.TrailLength > 0 {
		n := cfg.TrailLength
		if n > maxTrailLength {
			n = maxTrailLength
		}
		o.trailLen = n
	}

	o.patrolVertical = cfg.PatrolVertical
	if cfg.PatrolStart == 0 && cfg.PatrolEnd == 0 {
		anchor := o.pos.Col
		if o.patrolVertical {
			anchor = o.pos.Row
		}
		o.patrolStart = anchor - patrolHalfSpan
		if o.patrolStart < 0 {
			o.patrolStart = 0
		}
		o.patrolEnd = anchor + patrolHalfSpan
		if o.patrolEnd > g.Size()-1 {
			o.patrolEnd = g.Size() - 1
		}
	} else {
		o.patrolStart = cfg.PatrolStart
		o.patrolEnd = cfg.PatrolEnd
		if o.patrolStart > o.patrolEnd {
			o.patrolStart, o.patrolEnd = o.patrolEnd, o.patrolStart
		}
	}
	if o.pattern == Patrol {
		o.snapFacingToAxis()
	}

	// The trail starts filled with the spawn position.
	o.trail = make([]grid.Position, o.trailLen)
	for i := range o.trail {
		o.trail[i] = o.pos
	}

	// Claim the cell.
	c := g.At(o.pos)
	o.prevType = c.Type
	c.Type = grid.Obstacle
	return o, nil
}

// ---- Accessors ----

func (o *Obstacle) ID() string              { return o.id }
func (o *Obstacle) Pattern() Pattern        { return o.pattern }
func (o *Obstacle) Position() grid.Position { return o.pos }
func (o *Obstacle) Facing() grid.Direction  { return o.dir }
func (o *Obstacle) Speed() int              { return o.speed }

// PatrolBounds returns the patrol segment and whether it runs
// vertically.
func (o *Obstacle) PatrolBounds() (start, end int, vertical bool) {
	return o.patrolStart, o.patrolEnd, o.patrolVertical
}

// Trail returns the most recent previous positions, newest first.
func (o *Obstacle) Trail() []grid.Position {
	out := make([]grid.Position, len(o.trail))
	copy(out, o.trail)
	return out
}

// ---- Tuning ----

// SetSpeed sets the tick interval between moves, floor 1.
func (o *Obstacle) SetSpeed(speed int) {
	if speed < 1 {
		speed = 1
	}
	o.speed = speed
}

// SetTrailLength clamps to [1, 10]. Shrinking drops the oldest
// entries; growing pads with the current position.
func (o *Obstacle) SetTrailLength(n int) {
	if n < 1 {
		n = 1
	}
	if n > maxTrailLength {
		n = maxTrailLength
	}
	o.trailLen = n
	for len(o.trail) > n {
		o.trail = o.trail[:len(o.trail)-1]
	}
	for len(o.trail) < n {
		o.trail = append(o.trail, o.pos)
	}
}

// SetPatrolBounds reconfigures the patrol segment and resets the facing
// along the new axis. Segments that do not fit the board are ignored.
func (o *Obstacle) SetPatrolBounds(start, end int, vertical bool) {
	if start < 0 || end >= o.g.Size() || start > end {
		return
	}
	o.patrolStart = start
	o.patrolEnd = end
	o.patrolVertical = vertical
	if vertical {
		o.dir = grid.Down
	} else {
		o.dir = grid.Right
	}
}

// SetFacing overrides the current direction. Patrol obstacles snap back
// onto their axis.
func (o *Obstacle) SetFacing(d grid.Direction) {
	o.dir = d
	if o.pattern == Patrol {
		o.snapFacingToAxis()
	}
}

// SetPattern switches the movement policy in place, keeping position,
// speed and trail. Switching to Patrol folds the facing onto the patrol
// axis. Unknown patterns are ignored.
func (o *Obstacle) SetPattern(p Pattern) {
	if p > Chase {
		return
	}
	o.pattern = p
	if p == Patrol {
		o.snapFacingToAxis()
	}
}

// ---- Movement ----

// Move runs one simulation tick. The policy applies only every speed
// ticks; gated ticks return false without touching the trail. target is
// the cell Chase obstacles close in on. Returns whether the obstacle
// actually changed cells.
func (o *Obstacle) Move(target grid.Position) bool {
	o.moveCount++
	if o.moveCount < o.speed {
		return false
	}
	o.moveCount = 0

	// The trail records where the obstacle stood on every applied
	// tick, blocked or not.
	o.pushTrail(o.pos)

	next, ok := o.nextMove(target)
	if !ok || next == o.pos {
		return false
	}
	o.relocate(next)
	return true
}

func (o *Obstacle) nextMove(target grid.Position) (grid.Position, bool) {
	switch o.pattern {
	case Linear:
		next, dir, ok := linearStep(o.pos, o.dir, o.g.CanOccupy)
		o.dir = dir
		return next, ok
	case Random:
		return o.randomStep()
	case Patrol:
		next, dir, ok := o.patrolStep(o.pos, o.dir, o.g.CanOccupy)
		o.dir = dir
		return next, ok
	case Chase:
		return o.chaseStep(target)
	}
	return o.pos, false
}

// linearStep advances one cell, bouncing 180° off an illegal
// destination. If the reversed destination is also illegal the obstacle
// holds position but keeps the reversed facing.
func linearStep(pos grid.Position, dir grid.Direction, legal func(grid.Position) bool) (grid.Position, grid.Direction, bool) {
	next := pos.Step(dir)
	if !legal(next) {
		dir = dir.Reverse()
		next = pos.Step(dir)
		if !legal(next) {
			return pos, dir, false
		}
	}
	return next, dir, true
}

func (o *Obstacle) randomStep() (grid.Position, bool) {
	if o.rng.Float64() < randomTurnChance {
		o.dir = grid.Direction(o.rng.Intn(4))
	}
	if next := o.pos.Step(o.dir); o.g.CanOccupy(next) {
		return next, true
	}
	// Blocked: try a few random detours. The facing keeps the last
	// attempted direction even when every try fails.
	for i := 0; i < randomRetries; i++ {
		o.dir = grid.Direction(o.rng.Intn(4))
		if next := o.pos.Step(o.dir); o.g.CanOccupy(next) {
			return next, true
		}
	}
	return o.pos, false
}

// patrolStep oscillates within [patrolStart, patrolEnd] along the
// patrol axis, reversing at either bound or an illegal cell. If both
// ends are blocked the obstacle holds position.
func (o *Obstacle) patrolStep(pos grid.Position, dir grid.Direction, legal func(grid.Position) bool) (grid.Position, grid.Direction, bool) {
	inSegment := func(p grid.Position) bool {
		coord := p.Col
		if o.patrolVertical {
			coord = p.Row
		}
		return coord >= o.patrolStart && coord <= o.patrolEnd
	}
	next := pos.Step(dir)
	if !inSegment(next) || !legal(next) {
		dir = dir.Reverse()
		next = pos.Step(dir)
		if !inSegment(next) || !legal(next) {
			return pos, dir, false
		}
	}
	return next, dir, true
}

func (o *Obstacle) chaseStep(target grid.Position) (grid.Position, bool) {
	dr := target.Row - o.pos.Row
	dc := target.Col - o.pos.Col
	// Close the larger gap first; ties go horizontal.
	if abs(dr) > abs(dc) {
		if dr > 0 {
			o.dir = grid.Down
		} else {
			o.dir = grid.Up
		}
	} else {
		if dc > 0 {
			o.dir = grid.Right
		} else {
			o.dir = grid.Left
		}
	}
	if next := o.pos.Step(o.dir); o.g.CanOccupy(next) {
		return next, true
	}
	for _, d := range grid.AllDirections {
		if d == o.dir {
			continue
		}
		if next := o.pos.Step(d); o.g.CanOccupy(next) {
			o.dir = d
			return next, true
		}
	}
	return o.pos, false
}

func (o *Obstacle) relocate(next grid.Position) {
	o.g.SetType(o.pos, o.prevType)
	c := o.g.At(next)
	o.prevType = c.Type
	c.Type = grid.Obstacle
	o.pos = next
}

// Remove lifts the obstacle off the grid, restoring the covered cell's
// prior type. The obstacle must not be moved afterwards.
func (o *Obstacle) Remove() {
	o.g.SetType(o.pos, o.prevType)
	o.prevType = grid.Empty
}

func (o *Obstacle) pushTrail(p grid.Position) {
	copy(o.trail[1:], o.trail)
	o.trail[0] = p
}

// ---- Prediction ----

// PredictPath projects the next steps tick positions without mutating
// any state. Linear and Patrol runs replay their exact bounce rules
// against the current grid, including the speed gate; the obstacle's
// own standing cell counts as vacated, since the real run frees it
// before any return visit. Random and Chase are only trusted for three
// entries: extrapolate the current facing clamped to the board, then
// hold the last position.
func (o *Obstacle) PredictPath(steps int) []grid.Position {
	if steps <= 0 {
		return nil
	}
	out := make([]grid.Position, 0, steps)

	pos := o.pos
	dir := o.dir
	counter := o.moveCount

	for i := 0; i < steps; i++ {
		switch o.pattern {
		case Linear, Patrol:
			counter++
			if counter < o.speed {
				break
			}
			counter = 0
			var (
				next grid.Position
				ok   bool
			)
			if o.pattern == Linear {
				next, dir, ok = linearStep(pos, dir, o.simLegal)
			} else {
				next, dir, ok = o.patrolStep(pos, dir, o.simLegal)
			}
			if ok {
				pos = next
			}
		case Random, Chase:
			if i < extrapolateSteps {
				dr, dc := dir.Delta()
				pos = grid.Position{
					Row: clamp(pos.Row+dr, 0, o.g.Size()-1),
					Col: clamp(pos.Col+dc, 0, o.g.Size()-1),
				}
			}
		}
		out = append(out, pos)
	}
	return out
}

// simLegal is the prediction-time legality rule: identical to the real
// move rule except that the obstacle's current cell is judged by the
// type it covers.
func (o *Obstacle) simLegal(p grid.Position) bool {
	if p == o.pos {
		switch o.prevType {
		case grid.Empty, grid.Visited, grid.Considering, grid.Path:
			return true
		}
		return false
	}
	return o.g.CanOccupy(p)
}

// snapFacingToAxis folds an off-axis facing onto the patrol axis.
// Anything but the forward axis direction patrols backward first.
func (o *Obstacle) snapFacingToAxis() {
	if o.patrolVertical {
		if o.dir != grid.Down {
			o.dir = grid.Up
		}
	} else {
		if o.dir != grid.Right {
			o.dir = grid.Left
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
