package planner

import (
	"container/heap"
	"fmt"
	"strings"

	"github.com/aokimitsu/gridpath/grid"
)

// Algorithm selects the search strategy for a planning run.
type Algorithm uint8

const (
	AStar Algorithm = iota
	Dijkstra
	Greedy
	BFS
)

func (a Algorithm) String() string {
	switch a {
	case AStar:
		return "astar"
	case Dijkstra:
		return "dijkstra"
	case Greedy:
		return "greedy"
	case BFS:
		return "bfs"
	}
	return "unknown"
}

// ParseAlgorithm maps a config name to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "astar", "a*":
		return AStar, nil
	case "dijkstra":
		return Dijkstra, nil
	case "greedy":
		return Greedy, nil
	case "bfs":
		return BFS, nil
	}
	return AStar, fmt.Errorf("planner: unknown algorithm %q (want astar, dijkstra, greedy or bfs)", s)
}

// frontierItem carries the score it was pushed with. A cell whose score
// improves is pushed again; stale duplicates are skipped on pop via the
// closed set.
type frontierItem struct {
	pos   grid.Position
	score int
}

// frontier is a min-heap ordered by score, then row, then col. The
// explicit tie-break keeps equal-score pops, and with them the chosen
// path, reproducible.
type frontier []frontierItem

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	if f[i].score != f[j].score {
		return f[i].score < f[j].score
	}
	if f[i].pos.Row != f[j].pos.Row {
		return f[i].pos.Row < f[j].pos.Row
	}
	return f[i].pos.Col < f[j].pos.Col
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x interface{}) {
	*f = append(*f, x.(frontierItem))
}

func (f *frontier) Pop() interface{} {
	old := *f
	n := len(old)
	it := old[n-1]
	*f = old[:n-1]
	return it
}

// runAStar searches with f = g + Manhattan distance. Parents are left
// in the grid scratch for reconstruction. Reports whether end was
// reached.
func (p *Planner) runAStar() bool {
	sc := p.g.At(p.start)
	sc.GScore = 0
	sc.FScore = grid.Manhattan(p.start, p.end)

	open := &frontier{}
	heap.Push(open, frontierItem{pos: p.start, score: sc.FScore})
	closed := make(map[grid.Position]bool)

	for open.Len() > 0 {
		cur := heap.Pop(open).(frontierItem).pos
		if closed[cur] {
			continue
		}
		if cur == p.end {
			return true
		}
		closed[cur] = true
		p.markVisited(cur)

		curG := p.g.At(cur).GScore
		for _, d := range grid.AllDirections {
			np := cur.Step(d)
			if closed[np] || !p.g.CanTraverse(np) {
				continue
			}
			tentative := curG + 1
			nc := p.g.At(np)
			if tentative < nc.GScore {
				first := nc.GScore == grid.Unvisited
				nc.Parent = p.g.Index(cur)
				nc.GScore = tentative
				nc.FScore = tentative + grid.Manhattan(np, p.end)
				heap.Push(open, frontierItem{pos: np, score: nc.FScore})
				if first {
					p.markConsidering(np)
				}
			}
		}
	}
	return false
}

// runDijkstra is runAStar without the heuristic, kept on its own
// distance field.
func (p *Planner) runDijkstra() bool {
	p.g.At(p.start).Distance = 0

	open := &frontier{}
	heap.Push(open, frontierItem{pos: p.start, score: 0})
	closed := make(map[grid.Position]bool)

	for open.Len() > 0 {
		cur := heap.Pop(open).(frontierItem).pos
		if closed[cur] {
			continue
		}
		if cur == p.end {
			return true
		}
		closed[cur] = true
		p.markVisited(cur)

		curDist := p.g.At(cur).Distance
		for _, d := range grid.AllDirections {
			np := cur.Step(d)
			if closed[np] || !p.g.CanTraverse(np) {
				continue
			}
			tentative := curDist + 1
			nc := p.g.At(np)
			if tentative < nc.Distance {
				first := nc.Distance == grid.Unvisited
				nc.Parent = p.g.Index(cur)
				nc.Distance = tentative
				heap.Push(open, frontierItem{pos: np, score: tentative})
				if first {
					p.markConsidering(np)
				}
			}
		}
	}
	return false
}

// runGreedy expands by heuristic alone. Fast, not optimal; it bails out
// as soon as it generates the end cell.
func (p *Planner) runGreedy() bool {
	open := &frontier{}
	heap.Push(open, frontierItem{pos: p.start, score: grid.Manhattan(p.start, p.end)})
	closed := make(map[grid.Position]bool)
	opened := map[grid.Position]bool{p.start: true}

	for open.Len() > 0 {
		cur := heap.Pop(open).(frontierItem).pos
		if cur == p.end {
			return true
		}
		closed[cur] = true
		p.markVisited(cur)

		for _, d := range grid.AllDirections {
			np := cur.Step(d)
			if closed[np] || opened[np] || !p.g.CanTraverse(np) {
				continue
			}
			p.g.At(np).Parent = p.g.Index(cur)
			if np == p.end {
				return true
			}
			opened[np] = true
			heap.Push(open, frontierItem{pos: np, score: grid.Manhattan(np, p.end)})
			p.markConsidering(np)
		}
	}
	return false
}

// runBFS explores in FIFO order. With unit edge costs the first visit
// to any cell is along a shortest path, which makes this the optimality
// reference for the heap-based searches.
func (p *Planner) runBFS() bool {
	queue := []grid.Position{p.start}
	seen := map[grid.Position]bool{p.start: true}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == p.end {
			return true
		}
		p.markVisited(cur)

		for _, d := range grid.AllDirections {
			np := cur.Step(d)
			if seen[np] || !p.g.CanTraverse(np) {
				continue
			}
			p.g.At(np).Parent = p.g.Index(cur)
			seen[np] = true
			queue = append(queue, np)
			p.markConsidering(np)
		}
	}
	return false
}

func (p *Planner) markVisited(pos grid.Position) {
	if pos != p.start && pos != p.end {
		p.g.SetType(pos, grid.Visited)
	}
}

func (p *Planner) markConsidering(pos grid.Position) {
	if pos != p.start && pos != p.end {
		p.g.SetType(pos, grid.Considering)
	}
}

// reconstruct walks the parent chain end→start, marks the interior
// cells as path, and returns the start→end sequence.
func (p *Planner) reconstruct() []grid.Position {
	rev := make([]grid.Position, 0, grid.Manhattan(p.start, p.end)+1)
	cur := p.end
	for {
		rev = append(rev, cur)
		if cur != p.end {
			p.g.SetType(cur, grid.Path)
		}
		parent := p.g.At(cur).Parent
		if parent == grid.NoParent {
			break
		}
		next := p.g.PositionAt(parent)
		if next == p.start {
			rev = append(rev, next)
			break
		}
		cur = next
	}

	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}
