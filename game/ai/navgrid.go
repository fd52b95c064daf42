package ai

import (
	"container/heap"
	"errors"

	"github.com/lastlight-game/server/game/sim"
)

// ErrNoPath is returned when no passable route exists; callers fall back to
// direct-line movement so entities are never permanently stranded.
var ErrNoPath = errors.New("ai: no path")

// Planner computes a waypoint path between two world positions.
type Planner interface {
	Plan(from, to sim.Vec3) ([]sim.Vec3, error)
}

// NavGrid is a uniform walkability grid over the playfield, planning with
// 4-directional A*. Cell (0,0) spans world [0,cell)×[0,cell); the Z axis is
// ignored for planning.
type NavGrid struct {
	width, height int
	cell          float64
	blocked       []bool
}

func NewNavGrid(width, height int, cellSize float64) *NavGrid {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &NavGrid{
		width:   width,
		height:  height,
		cell:    cellSize,
		blocked: make([]bool, width*height),
	}
}

// Block marks a cell impassable.
func (g *NavGrid) Block(cx, cy int) {
	if g.inBounds(cx, cy) {
		g.blocked[cy*g.width+cx] = true
	}
}

// Passable reports whether a cell is inside the grid and walkable.
func (g *NavGrid) Passable(cx, cy int) bool {
	return g.inBounds(cx, cy) && !g.blocked[cy*g.width+cx]
}

func (g *NavGrid) inBounds(cx, cy int) bool {
	return cx >= 0 && cx < g.width && cy >= 0 && cy < g.height
}

func (g *NavGrid) toCell(p sim.Vec3) (int, int) {
	return int(p.X / g.cell), int(p.Y / g.cell)
}

func (g *NavGrid) toWorld(cx, cy int) sim.Vec3 {
	return sim.Vec3{X: (float64(cx) + 0.5) * g.cell, Y: (float64(cy) + 0.5) * g.cell}
}

type gridNode struct {
	cx, cy int
	g, f   int
	parent *gridNode
	index  int
}

type nodeQueue []*gridNode

func (q nodeQueue) Len() int            { return len(q) }
func (q nodeQueue) Less(i, j int) bool  { return q[i].f < q[j].f }
func (q nodeQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index = i; q[j].index = j }
func (q *nodeQueue) Push(x any)         { n := x.(*gridNode); n.index = len(*q); *q = append(*q, n) }
func (q *nodeQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]
	return n
}

// Plan runs A* from `from` to `to`. The returned path excludes the start
// cell and ends at the destination point itself.
func (g *NavGrid) Plan(from, to sim.Vec3) ([]sim.Vec3, error) {
	sx, sy := g.toCell(from)
	tx, ty := g.toCell(to)
	if !g.Passable(sx, sy) || !g.Passable(tx, ty) {
		return nil, ErrNoPath
	}
	if sx == tx && sy == ty {
		return []sim.Vec3{to}, nil
	}

	manhattan := func(ax, ay int) int {
		dx, dy := ax-tx, ay-ty
		if dx < 0 {
			dx = -dx
		}
		if dy < 0 {
			dy = -dy
		}
		return dx + dy
	}

	open := &nodeQueue{}
	heap.Init(open)
	start := &gridNode{cx: sx, cy: sy, f: manhattan(sx, sy)}
	heap.Push(open, start)

	type cellKey [2]int
	gScore := map[cellKey]int{{sx, sy}: 0}
	closed := map[cellKey]bool{}

	dirs := [4][2]int{{0, 1}, {0, -1}, {1, 0}, {-1, 0}}

	for open.Len() > 0 {
		cur := heap.Pop(open).(*gridNode)
		ck := cellKey{cur.cx, cur.cy}
		if closed[ck] {
			continue
		}
		closed[ck] = true

		if cur.cx == tx && cur.cy == ty {
			var path []sim.Vec3
			for n := cur; n.parent != nil; n = n.parent {
				path = append(path, g.toWorld(n.cx, n.cy))
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			// Land on the requested point, not the cell center.
			path[len(path)-1] = to
			return path, nil
		}

		for _, d := range dirs {
			nx, ny := cur.cx+d[0], cur.cy+d[1]
			nk := cellKey{nx, ny}
			if closed[nk] || !g.Passable(nx, ny) {
				continue
			}
			ng := cur.g + 1
			if prev, seen := gScore[nk]; !seen || ng < prev {
				gScore[nk] = ng
				heap.Push(open, &gridNode{
					cx: nx, cy: ny,
					g:      ng,
					f:      ng + manhattan(nx, ny),
					parent: cur,
				})
			}
		}
	}
	return nil, ErrNoPath
}
