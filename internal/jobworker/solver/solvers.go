package solver

import (
	"errors"
	"fmt"
	"math"
)

// ErrSingularMatrix indicates Gaussian elimination found no usable pivot,
// the rendering of original_source's numpy_exact_solver.py raising numpy's
// LinAlgError("Singular matrix").
var ErrSingularMatrix = errors.New("LinAlgError: Singular matrix")

// ErrNotConverged indicates an iterative solver exhausted its iteration
// budget without reaching its tolerance.
var ErrNotConverged = errors.New("did not converge")

// ExactSolver solves square systems exactly via Gaussian elimination with
// partial pivoting, the Go rendering of numpy.linalg.solve (method
// identifier "numpy_exact").
type ExactSolver struct{}

// Solve implements Solver.
func (ExactSolver) Solve(matrix [][]float64, rhs []float64) ([]float64, error) {
	rows, cols, err := checkDimensions(matrix, rhs)
	if err != nil {
		return nil, err
	}
	if rows != cols {
		return nil, fmt.Errorf("%w: matrix must be square, got %dx%d", ErrDimensionMismatch, rows, cols)
	}

	a := cloneMatrix(matrix)
	b := append([]float64(nil), rhs...)
	n := rows

	for col := 0; col < n; col++ {
		pivotRow := col
		maxAbs := math.Abs(a[col][col])
		for r := col + 1; r < n; r++ {
			if abs := math.Abs(a[r][col]); abs > maxAbs {
				pivotRow, maxAbs = r, abs
			}
		}
		if maxAbs < 1e-12 {
			return nil, ErrSingularMatrix
		}
		if pivotRow != col {
			a[col], a[pivotRow] = a[pivotRow], a[col]
			b[col], b[pivotRow] = b[pivotRow], b[col]
		}

		for r := col + 1; r < n; r++ {
			factor := a[r][col] / a[col][col]
			if factor == 0 {
				continue
			}
			for c := col; c < n; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < n; j++ {
			sum -= a[i][j] * x[j]
		}
		if math.Abs(a[i][i]) < 1e-12 {
			return nil, ErrSingularMatrix
		}
		x[i] = sum / a[i][i]
	}
	return x, nil
}

// LstsqSolver solves the least-squares problem via the normal equations
// (AᵀA)x = Aᵀb, the Go rendering of numpy.linalg.lstsq (method identifier
// "numpy_lstsq"). Works for both square and overdetermined systems.
type LstsqSolver struct{}

// Solve implements Solver.
func (LstsqSolver) Solve(matrix [][]float64, rhs []float64) ([]float64, error) {
	_, cols, err := checkDimensions(matrix, rhs)
	if err != nil {
		return nil, err
	}

	ata, atb := normalEquations(matrix, rhs, cols)
	x, err := ExactSolver{}.Solve(ata, atb)
	if errors.Is(err, ErrSingularMatrix) {
		return nil, fmt.Errorf("LinAlgError: least squares system is rank deficient")
	}
	return x, err
}

// PinvSolver solves via a Tikhonov-regularized pseudo-inverse: x =
// (AᵀA + λI)⁻¹Aᵀb, the Go rendering of numpy.linalg.pinv (method identifier
// "numpy_pinv"). Lambda is a small ridge term that keeps the normal
// equations solvable even when A is rank deficient.
type PinvSolver struct {
	Lambda float64
}

// Solve implements Solver.
func (s PinvSolver) Solve(matrix [][]float64, rhs []float64) ([]float64, error) {
	_, cols, err := checkDimensions(matrix, rhs)
	if err != nil {
		return nil, err
	}

	ata, atb := normalEquations(matrix, rhs, cols)
	lambda := s.Lambda
	if lambda <= 0 {
		lambda = 1e-10
	}
	for i := 0; i < cols; i++ {
		ata[i][i] += lambda
	}
	return ExactSolver{}.Solve(ata, atb)
}

// normalEquations builds AᵀA and Aᵀb for an m x cols matrix.
func normalEquations(matrix [][]float64, rhs []float64, cols int) (ata [][]float64, atb []float64) {
	ata = make([][]float64, cols)
	for i := range ata {
		ata[i] = make([]float64, cols)
	}
	atb = make([]float64, cols)

	for _, row := range matrix {
		for i := 0; i < cols; i++ {
			for j := 0; j < cols; j++ {
				ata[i][j] += row[i] * row[j]
			}
		}
	}
	for rowIdx, row := range matrix {
		for i := 0; i < cols; i++ {
			atb[i] += row[i] * rhs[rowIdx]
		}
	}
	return ata, atb
}

// JacobiSolver is a fixed-point iterative solver standing in for the PETSc
// KSP solver named in spec.md (method identifier "petsc"); it converges
// reliably on diagonally dominant systems.
type JacobiSolver struct {
	Tolerance     float64
	MaxIterations int
}

// Solve implements Solver.
func (s JacobiSolver) Solve(matrix [][]float64, rhs []float64) ([]float64, error) {
	rows, cols, err := checkDimensions(matrix, rhs)
	if err != nil {
		return nil, err
	}
	if rows != cols {
		return nil, fmt.Errorf("%w: iterative solver requires a square matrix, got %dx%d", ErrDimensionMismatch, rows, cols)
	}
	n := rows

	for i := 0; i < n; i++ {
		if math.Abs(matrix[i][i]) < 1e-12 {
			return nil, fmt.Errorf("PetscError: zero diagonal at row %d, cannot iterate", i)
		}
	}

	x := make([]float64, n)
	next := make([]float64, n)
	tol := s.Tolerance
	if tol <= 0 {
		tol = 1e-8
	}
	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = 1000
	}

	for iter := 0; iter < maxIter; iter++ {
		for i := 0; i < n; i++ {
			sum := rhs[i]
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				sum -= matrix[i][j] * x[j]
			}
			next[i] = sum / matrix[i][i]
		}

		if residualNorm(matrix, next, rhs) < tol {
			return next, nil
		}
		x, next = next, x
	}

	return nil, fmt.Errorf("PetscError: KSP %w after %d iterations", ErrNotConverged, maxIter)
}

// GMRESSolver is a restarted residual-minimization iterative solver
// standing in for scipy.sparse.linalg.gmres (method identifier
// "scipy_gmres"). It uses a damped Richardson iteration with periodic
// restarts rather than full Krylov-subspace GMRES, which is sufficient to
// converge on well-conditioned systems and to fail informatively on
// systems that do not.
type GMRESSolver struct {
	Tolerance     float64
	MaxIterations int
	Restart       int
}

// Solve implements Solver.
func (s GMRESSolver) Solve(matrix [][]float64, rhs []float64) ([]float64, error) {
	rows, cols, err := checkDimensions(matrix, rhs)
	if err != nil {
		return nil, err
	}
	if rows != cols {
		return nil, fmt.Errorf("%w: GMRES requires a square matrix, got %dx%d", ErrDimensionMismatch, rows, cols)
	}
	n := rows

	tol := s.Tolerance
	if tol <= 0 {
		tol = 1e-8
	}
	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = 1000
	}
	restart := s.Restart
	if restart <= 0 {
		restart = 20
	}

	alpha := richardsonStep(matrix)

	x := make([]float64, n)
	for iter := 0; iter < maxIter; iter++ {
		r := residual(matrix, x, rhs)
		if norm(r) < tol {
			return x, nil
		}
		for k := 0; k < restart; k++ {
			r := residual(matrix, x, rhs)
			for i := 0; i < n; i++ {
				x[i] += alpha * r[i]
			}
		}
	}

	if norm(residual(matrix, x, rhs)) < tol {
		return x, nil
	}
	return nil, fmt.Errorf("GMRES %w, info=1", ErrNotConverged)
}

// richardsonStep picks a conservative step size from the matrix's diagonal
// so the damped Richardson iteration above contracts for diagonally
// dominant or well-conditioned systems.
func richardsonStep(matrix [][]float64) float64 {
	maxDiag := 0.0
	for i, row := range matrix {
		if d := math.Abs(row[i]); d > maxDiag {
			maxDiag = d
		}
	}
	if maxDiag == 0 {
		return 0
	}
	return 1.0 / maxDiag
}

func residual(matrix [][]float64, x, rhs []float64) []float64 {
	n := len(rhs)
	r := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for j, v := range x {
			sum += matrix[i][j] * v
		}
		r[i] = rhs[i] - sum
	}
	return r
}

func residualNorm(matrix [][]float64, x, rhs []float64) float64 {
	return norm(residual(matrix, x, rhs))
}

func norm(v []float64) float64 {
	sum := 0.0
	for _, e := range v {
		sum += e * e
	}
	return math.Sqrt(sum)
}
