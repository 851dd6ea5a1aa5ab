// Package solver provides the Solver capability the job-lifecycle engine
// treats as an opaque collaborator (spec.md section 6, "Solver collaborator
// contract"): solve(matrix, rhs) -> vector. Implementations here are
// deliberately simple stand-ins for the real numerical libraries the
// original system names (numpy, PETSc, SciPy) -- the engine never inspects
// their internals, only the Solve contract. See DESIGN.md for why this is
// the one package in the repo implemented against the standard library
// only.
package solver

import (
	"errors"
	"fmt"
)

// Solver maps a dense coefficient matrix and right-hand-side vector to a
// solution vector, or reports a failure. Implementations must not retry
// internally; the worker that owns the Solver call is the retry boundary
// (there is none -- spec.md 4.2 is explicit that the worker never retries).
type Solver interface {
	Solve(matrix [][]float64, rhs []float64) ([]float64, error)
}

// Registry is a lookup table from method identifier to Solver, the Go
// rendering of the original system's string-keyed solver class map
// (original_source/mdds_grpc_core/service.py's SOLVER_MAP).
type Registry struct {
	solvers map[string]Solver
}

// NewRegistry builds a Registry containing exactly the named methods, each
// mapped to its corresponding built-in Solver. Unknown names are skipped
// silently; callers populate methods from config.Config.Methods, which is
// expected to only ever name methods this package knows about.
func NewRegistry(methods []string) *Registry {
	all := map[string]Solver{
		"numpy_exact": ExactSolver{},
		"numpy_lstsq": LstsqSolver{},
		"numpy_pinv":  PinvSolver{Lambda: 1e-10},
		"petsc":       JacobiSolver{Tolerance: 1e-8, MaxIterations: 1000},
		"scipy_gmres": GMRESSolver{Tolerance: 1e-8, MaxIterations: 1000, Restart: 20},
	}

	r := &Registry{solvers: make(map[string]Solver, len(methods))}
	for _, name := range methods {
		if s, ok := all[name]; ok {
			r.solvers[name] = s
		}
	}
	return r
}

// Lookup returns the Solver registered for method, and whether it was
// found.
func (r *Registry) Lookup(method string) (Solver, bool) {
	s, ok := r.solvers[method]
	return s, ok
}

// Known reports whether method names a registered solver -- the service's
// use of this is spec.md 4.6.1 precondition 3 ("method in the recognized
// solver set").
func (r *Registry) Known(method string) bool {
	_, ok := r.solvers[method]
	return ok
}

// ErrDimensionMismatch indicates rhs's length does not match matrix's row
// count, a precondition every Solver in this package checks up front.
var ErrDimensionMismatch = errors.New("dimension mismatch")

func checkDimensions(matrix [][]float64, rhs []float64) (rows, cols int, err error) {
	rows = len(matrix)
	if rows == 0 {
		return 0, 0, fmt.Errorf("%w: empty matrix", ErrDimensionMismatch)
	}
	cols = len(matrix[0])
	if cols == 0 {
		return 0, 0, fmt.Errorf("%w: empty matrix rows", ErrDimensionMismatch)
	}
	if len(rhs) != rows {
		return 0, 0, fmt.Errorf("%w: matrix has %d rows, rhs has %d entries", ErrDimensionMismatch, rows, len(rhs))
	}
	for i, row := range matrix {
		if len(row) != cols {
			return 0, 0, fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimensionMismatch, i, len(row), cols)
		}
	}
	return rows, cols, nil
}

// cloneMatrix returns a deep copy of matrix so solvers may mutate their
// working copy freely.
func cloneMatrix(matrix [][]float64) [][]float64 {
	out := make([][]float64, len(matrix))
	for i, row := range matrix {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
