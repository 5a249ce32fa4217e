package kernel

import (
	"errors"
	"math"
	"sort"
)

// ErrNotConverged is returned when the Jacobi iteration exceeds its sweep budget.
var ErrNotConverged = errors.New("kernel: eigen decomposition did not converge")

const maxJacobiSweeps = 100

// SymmetricEigen decomposes the symmetric n×n row-major matrix a with cyclic
// Jacobi rotations. It returns the eigenvalues in descending order and the
// matching eigenvectors as rows of an n×n row-major matrix. a is not modified.
func SymmetricEigen(a []float64, n int) ([]float64, []float64, error) {
	m := make([]float64, n*n)
	copy(m, a)
	v := make([]float64, n*n)
	for i := 0; i < n; i++ {
		v[i*n+i] = 1
	}

	var scale float64
	for _, x := range m {
		scale += x * x
	}
	tol := 1e-22 * math.Max(scale, 1)

	converged := false
	for sweep := 0; sweep < maxJacobiSweeps; sweep++ {
		var off float64
		for p := 0; p < n; p++ {
			for q := p + 1; q < n; q++ {
				off += m[p*n+q] * m[p*n+q]
			}
		}
		if off <= tol {
			converged = true
			break
		}

		for p := 0; p < n; p++ {
			for q := p + 1; q < n; q++ {
				apq := m[p*n+q]
				if apq == 0 {
					continue
				}
				theta := (m[q*n+q] - m[p*n+p]) / (2 * apq)
				t := math.Copysign(1, theta) / (math.Abs(theta) + math.Sqrt(theta*theta+1))
				c := 1 / math.Sqrt(t*t+1)
				s := t * c

				for k := 0; k < n; k++ {
					kp, kq := m[k*n+p], m[k*n+q]
					m[k*n+p] = c*kp - s*kq
					m[k*n+q] = s*kp + c*kq
				}
				for k := 0; k < n; k++ {
					pk, qk := m[p*n+k], m[q*n+k]
					m[p*n+k] = c*pk - s*qk
					m[q*n+k] = s*pk + c*qk
				}
				for k := 0; k < n; k++ {
					kp, kq := v[k*n+p], v[k*n+q]
					v[k*n+p] = c*kp - s*kq
					v[k*n+q] = s*kp + c*kq
				}
			}
		}
	}
	if !converged {
		return nil, nil, ErrNotConverged
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return m[order[i]*n+order[i]] > m[order[j]*n+order[j]] })

	values := make([]float64, n)
	vectors := make([]float64, n*n)
	for r, col := range order {
		values[r] = m[col*n+col]
		for k := 0; k < n; k++ {
			vectors[r*n+k] = v[k*n+col]
		}
	}
	return values, vectors, nil
}
