package tensor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrClosed = errors.New("session closed")
	ErrFeed   = errors.New("invalid feed")
)

// Feed binds placeholder nodes to their values for a single run.
type Feed map[*Node]mat.Matrix

// Session evaluates graph nodes.
// Values of nodes that do not depend on any placeholder are computed once and kept
// until the session is closed.
type Session struct {
	lock   sync.Mutex
	closed bool
	cache  map[*Node]*mat.Dense
	runs   int
}

func NewSession() *Session {
	return &Session{
		cache: make(map[*Node]*mat.Dense),
	}
}

// Run evaluates the fetch node with the given feed and returns a copy of its value.
func (s *Session) Run(fetch *Node, feed Feed) (*mat.Dense, error) {
	if s == nil {
		return nil, ErrClosed
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if fetch == nil {
		return nil, fmt.Errorf("nothing to fetch: %w", ErrFeed)
	}
	v, err := s.eval(fetch, feed, make(map[*Node]*mat.Dense))
	if err != nil {
		return nil, err
	}
	s.runs++
	return mat.DenseCopyOf(v), nil
}

// Runs returns the number of successful runs.
func (s *Session) Runs() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.runs
}

// Closed reports whether the session can no longer run, a nil session is always closed.
func (s *Session) Closed() bool {
	if s == nil {
		return true
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.closed
}

// Close releases the cached values. Closing twice is a no-op.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	log.Debug().Int("runs", s.runs).Int("cached", len(s.cache)).Msg("closing tensor session")
	s.cache = nil
	return nil
}

func (s *Session) eval(n *Node, feed Feed, values map[*Node]*mat.Dense) (*mat.Dense, error) {
	if v, ok := s.cache[n]; ok {
		return v, nil
	}
	if v, ok := values[n]; ok {
		return v, nil
	}

	inputs := make([]*mat.Dense, len(n.inputs))
	for i, in := range n.inputs {
		v, err := s.eval(in, feed, values)
		if err != nil {
			return nil, err
		}
		inputs[i] = v
	}

	var v *mat.Dense
	switch n.op {
	case opPlaceholder:
		m, ok := feed[n]
		if !ok || m == nil {
			return nil, fmt.Errorf("placeholder '%s' not fed: %w", n.name, ErrFeed)
		}
		r, c := m.Dims()
		if r != n.rows || c != n.cols {
			return nil, fmt.Errorf("placeholder '%s' expects %dx%d but got %dx%d: %w",
				n.name, n.rows, n.cols, r, c, ErrFeed)
		}
		v = mat.DenseCopyOf(m)
	case opConstant:
		v = n.value
	case opMulT:
		v = mat.NewDense(n.rows, n.cols, nil)
		v.Mul(inputs[0], inputs[1].T())
	case opSumSquares:
		v = mat.NewDense(n.rows, 1, nil)
		for i := 0; i < n.rows; i++ {
			row := inputs[0].RawRowView(i)
			v.Set(i, 0, floats.Dot(row, row))
		}
	case opTranspose:
		v = mat.DenseCopyOf(inputs[0].T())
	case opAdd:
		a, b := inputs[0], inputs[1]
		br, bc := b.Dims()
		v = mat.NewDense(n.rows, n.cols, nil)
		for i := 0; i < n.rows; i++ {
			for j := 0; j < n.cols; j++ {
				v.Set(i, j, a.At(i, j)+b.At(i%br, j%bc))
			}
		}
	case opScale:
		v = mat.NewDense(n.rows, n.cols, nil)
		v.Scale(n.alpha, inputs[0])
	default:
		return nil, fmt.Errorf("unknown op '%v' for node %v", n.op, n)
	}

	if n.static {
		s.cache[n] = v
	} else {
		values[n] = v
	}
	return v, nil
}
