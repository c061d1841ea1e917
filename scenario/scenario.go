// Package scenario loads declarative board setups from JSON files:
// board size, endpoints, walls and obstacle spawns. A scenario is
// validated as a whole before anything touches a grid, so a bad file
// never leaves a half-stamped board behind.
package scenario

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/aokimitsu/gridpath/grid"
	"github.com/aokimitsu/gridpath/obstacle"
)

// DefaultWallDensity is the wall share GenerateWalls uses for demo
// boards when the host does not pick one.
const DefaultWallDensity = 0.25

// Point is a board coordinate as written in scenario files.
type Point struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Point) position() grid.Position {
	return grid.Position{Row: p.Row, Col: p.Col}
}

// PatrolSpec pins a patrol obstacle to a fixed segment.
type PatrolSpec struct {
	Start    int  `json:"start"`
	End      int  `json:"end"`
	Vertical bool `json:"vertical"`
}

// ObstacleSpec describes one obstacle spawn. An empty pattern means
// linear; an empty facing is rolled at spawn time.
type ObstacleSpec struct {
	Position    Point       `json:"position"`
	Pattern     string      `json:"pattern,omitempty"`
	Facing      string      `json:"facing,omitempty"`
	Speed       int         `json:"speed,omitempty"`
	TrailLength int         `json:"trail_length,omitempty"`
	Patrol      *PatrolSpec `json:"patrol,omitempty"`
}

// Config converts the spec into an obstacle.Config, minus the RNG and
// grid the spawner wires in.
func (o ObstacleSpec) Config() (obstacle.Config, error) {
	pattern := obstacle.Linear
	if o.Pattern != "" {
		var err error
		if pattern, err = obstacle.ParsePattern(o.Pattern); err != nil {
			return obstacle.Config{}, err
		}
	}
	cfg := obstacle.Config{
		Pattern:      pattern,
		Position:     o.Position.position(),
		RandomFacing: o.Facing == "",
		Speed:        o.Speed,
		TrailLength:  o.TrailLength,
	}
	if o.Facing != "" {
		facing, err := grid.ParseDirection(o.Facing)
		if err != nil {
			return obstacle.Config{}, err
		}
		cfg.Facing = facing
	}
	if o.Patrol != nil {
		cfg.PatrolStart = o.Patrol.Start
		cfg.PatrolEnd = o.Patrol.End
		cfg.PatrolVertical = o.Patrol.Vertical
	}
	return cfg, nil
}

// Scenario is one declarative board setup.
type Scenario struct {
	Size      int            `json:"size"`
	Start     Point          `json:"start"`
	End       Point          `json:"end"`
	Walls     []Point        `json:"walls,omitempty"`
	Obstacles []ObstacleSpec `json:"obstacles,omitempty"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: read %s: %w", path, err)
	}
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("scenario: parse %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario: %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks the whole scenario: board size, endpoints in bounds
// and distinct, walls in bounds and off the endpoints, obstacle spawns
// on free cells with parseable patterns and sane patrol segments.
func (s *Scenario) Validate() error {
	if s.Size < 2 {
		return fmt.Errorf("size %d is too small for a board", s.Size)
	}
	in := func(p Point) bool {
		return p.Row >= 0 && p.Row < s.Size && p.Col >= 0 && p.Col < s.Size
	}

	if !in(s.Start) {
		return fmt.Errorf("start %v out of bounds", s.Start.position())
	}
	if !in(s.End) {
		return fmt.Errorf("end %v out of bounds", s.End.position())
	}
	if s.Start == s.End {
		return fmt.Errorf("start and end coincide at %v", s.Start.position())
	}

	blocked := make(map[Point]bool, len(s.Walls))
	for i, w := range s.Walls {
		if !in(w) {
			return fmt.Errorf("wall %d out of bounds at %v", i, w.position())
		}
		if w == s.Start || w == s.End {
			return fmt.Errorf("wall %d covers an endpoint at %v", i, w.position())
		}
		blocked[w] = true
	}

	for i, o := range s.Obstacles {
		if !in(o.Position) {
			return fmt.Errorf("obstacle %d out of bounds at %v", i, o.Position.position())
		}
		if blocked[o.Position] {
			return fmt.Errorf("obstacle %d spawns on an occupied cell %v", i, o.Position.position())
		}
		if o.Position == s.Start || o.Position == s.End {
			return fmt.Errorf("obstacle %d spawns on an endpoint at %v", i, o.Position.position())
		}
		if o.Pattern != "" {
			if _, err := obstacle.ParsePattern(o.Pattern); err != nil {
				return fmt.Errorf("obstacle %d: %w", i, err)
			}
		}
		if o.Facing != "" {
			if _, err := grid.ParseDirection(o.Facing); err != nil {
				return fmt.Errorf("obstacle %d: %w", i, err)
			}
		}
		if p := o.Patrol; p != nil {
			if p.Start < 0 || p.Start > p.End || p.End >= s.Size {
				return fmt.Errorf("obstacle %d: patrol segment [%d, %d] invalid for size %d",
					i, p.Start, p.End, s.Size)
			}
		}
		blocked[o.Position] = true
	}
	return nil
}

// Apply stamps the walls and endpoints onto g, which must match the
// scenario size. Obstacle specs are left to the spawner, which wires
// its own RNG and logger in.
func (s *Scenario) Apply(g *grid.Grid) error {
	if g == nil {
		return fmt.Errorf("scenario: apply to nil grid")
	}
	if g.Size() != s.Size {
		return fmt.Errorf("scenario: grid size %d does not match scenario size %d", g.Size(), s.Size)
	}
	for _, w := range s.Walls {
		g.SetType(w.position(), grid.Wall)
	}
	g.SetType(s.Start.position(), grid.Start)
	g.SetType(s.End.position(), grid.End)
	return nil
}

// GenerateWalls stamps random walls over empty cells at the given
// density, leaving every non-empty cell alone. Returns the number of
// walls placed.
func GenerateWalls(rng *rand.Rand, g *grid.Grid, density float64) int {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	placed := 0
	for r := 0; r < g.Size(); r++ {
		for c := 0; c < g.Size(); c++ {
			p := grid.Position{Row: r, Col: c}
			if g.At(p).Type != grid.Empty || rng.Float64() >= density {
				continue
			}
			if err := g.SetWall(p); err == nil {
				placed++
			}
		}
	}
	return placed
}
