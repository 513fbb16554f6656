package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

type op int

const (
	opPlaceholder op = iota
	opConstant
	opMulT
	opSumSquares
	opTranspose
	opAdd
	opScale
)

func (o op) String() string {
	switch o {
	case opPlaceholder:
		return "placeholder"
	case opConstant:
		return "constant"
	case opMulT:
		return "mult"
	case opSumSquares:
		return "sumsq"
	case opTranspose:
		return "transpose"
	case opAdd:
		return "add"
	case opScale:
		return "scale"
	}
	return "unknown"
}

// Node is a 2-dimensional value in a Graph.
// Nodes are immutable once created.
type Node struct {
	graph  *Graph
	id     int
	op     op
	name   string
	rows   int
	cols   int
	inputs []*Node
	value  *mat.Dense
	alpha  float64
	// static nodes do not depend on any placeholder
	static bool
}

// Dims returns the shape of the node.
func (n *Node) Dims() (r, c int) {
	return n.rows, n.cols
}

func (n *Node) Name() string {
	return n.name
}

func (n *Node) String() string {
	return fmt.Sprintf("%s[%d](%dx%d)", n.op, n.id, n.rows, n.cols)
}

// Graph collects the nodes of a computation.
// Building a graph does not compute anything, nodes are evaluated through a Session.
type Graph struct {
	nodes []*Node
}

func NewGraph() *Graph {
	return &Graph{nodes: make([]*Node, 0)}
}

func (g *Graph) add(n *Node) *Node {
	n.graph = g
	n.id = len(g.nodes)
	if n.name == "" {
		n.name = fmt.Sprintf("%s_%d", n.op, n.id)
	}
	g.nodes = append(g.nodes, n)
	return n
}

func (g *Graph) mustOwn(nodes ...*Node) {
	for _, n := range nodes {
		if n == nil || n.graph != g {
			panic(fmt.Sprintf("node %v does not belong to the graph", n))
		}
	}
}

// Placeholder declares an input of the given shape that must be fed on every run.
func (g *Graph) Placeholder(name string, rows, cols int) *Node {
	if rows <= 0 || cols <= 0 {
		panic(fmt.Sprintf("invalid placeholder shape %dx%d", rows, cols))
	}
	return g.add(&Node{
		op:   opPlaceholder,
		name: name,
		rows: rows,
		cols: cols,
	})
}

// Constant captures a copy of the given matrix.
func (g *Graph) Constant(name string, m mat.Matrix) *Node {
	v := mat.DenseCopyOf(m)
	r, c := v.Dims()
	return g.add(&Node{
		op:     opConstant,
		name:   name,
		rows:   r,
		cols:   c,
		value:  v,
		static: true,
	})
}

// MulT multiplies a with the transpose of b.
func (g *Graph) MulT(a, b *Node) *Node {
	g.mustOwn(a, b)
	if a.cols != b.cols {
		panic(fmt.Sprintf("cannot multiply %v with transpose of %v", a, b))
	}
	return g.add(&Node{
		op:     opMulT,
		rows:   a.rows,
		cols:   b.rows,
		inputs: []*Node{a, b},
		static: a.static && b.static,
	})
}

// SumSquares reduces every row to the sum of its squared elements, producing a column vector.
func (g *Graph) SumSquares(a *Node) *Node {
	g.mustOwn(a)
	return g.add(&Node{
		op:     opSumSquares,
		rows:   a.rows,
		cols:   1,
		inputs: []*Node{a},
		static: a.static,
	})
}

func (g *Graph) T(a *Node) *Node {
	g.mustOwn(a)
	return g.add(&Node{
		op:     opTranspose,
		rows:   a.cols,
		cols:   a.rows,
		inputs: []*Node{a},
		static: a.static,
	})
}

// Add adds b to a elementwise.
// b can have the same shape as a, or be a column (rows x 1) or row (1 x cols) vector
// that is broadcast across a.
func (g *Graph) Add(a, b *Node) *Node {
	g.mustOwn(a, b)
	if (b.rows != a.rows && b.rows != 1) || (b.cols != a.cols && b.cols != 1) {
		panic(fmt.Sprintf("cannot broadcast %v onto %v", b, a))
	}
	return g.add(&Node{
		op:     opAdd,
		rows:   a.rows,
		cols:   a.cols,
		inputs: []*Node{a, b},
		static: a.static && b.static,
	})
}

func (g *Graph) Scale(alpha float64, a *Node) *Node {
	g.mustOwn(a)
	return g.add(&Node{
		op:     opScale,
		rows:   a.rows,
		cols:   a.cols,
		inputs: []*Node{a},
		alpha:  alpha,
		static: a.static,
	})
}

func (g *Graph) Neg(a *Node) *Node {
	return g.Scale(-1, a)
}

// NegSquaredDistance computes, for every row of x and every row of c,
// the negative squared euclidean distance as -(|x|^2 - 2x.c + |c|^2).
func (g *Graph) NegSquaredDistance(x, c *Node) *Node {
	cross := g.Scale(-2, g.MulT(x, c))
	return g.Neg(g.Add(g.Add(cross, g.SumSquares(x)), g.T(g.SumSquares(c))))
}
