package grid

// CellType classifies what currently occupies a grid cell.
type CellType uint8

const (
	Empty CellType = iota
	Wall
	Start
	End
	Visited     // expanded during a search
	Considering // on the search frontier
	Path        // part of the current planned path
	Obstacle    // covered by a moving obstacle; distinct from Wall
)

func (t CellType) String() string {
	switch t {
	case Empty:
		return "empty"
	case Wall:
		return "wall"
	case Start:
		return "start"
	case End:
		return "end"
	case Visited:
		return "visited"
	case Considering:
		return "considering"
	case Path:
		return "path"
	case Obstacle:
		return "obstacle"
	}
	return "unknown"
}

// NoParent marks a cell with no search predecessor.
const NoParent = -1

// Unvisited is the initial score for search scratch fields.
const Unvisited = int(^uint(0) >> 1)

// Cell is one square of the grid. Type is shared state; the scratch
// fields belong to whichever search is currently running.
type Cell struct {
	Type CellType

	// Search scratch. Parent is a flat cell index (row*size+col),
	// NoParent when unset.
	GScore   int
	FScore   int
	Distance int
	Parent   int
}

func (c *Cell) resetScratch() {
	c.GScore = Unvisited
	c.FScore = Unvisited
	c.Distance = Unvisited
	c.Parent = NoParent
}
