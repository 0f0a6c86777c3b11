package der

import (
	"fmt"
	"math"
)

// Mapping pairs reference labels with hypothesis labels one to one.
// Reference labels with no counterpart are absent.
type Mapping map[string]string

// OptimalMapping returns the mapping that maximises the total co-occurrence
// duration of mapped pairs. The assignment is solved exactly with the
// Hungarian method on a square matrix padded with zero-weight dummies.
// Pairs that never co-occur are left unmapped.
func OptimalMapping(c *Contingency) (Mapping, error) {
	nr, nh := len(c.RefLabels), len(c.HypLabels)
	mapping := make(Mapping)
	if nr == 0 || nh == 0 {
		return mapping, nil
	}

	n := nr
	if nh > n {
		n = nh
	}
	cost := make([][]float64, n)
	for i := range cost {
		cost[i] = make([]float64, n)
		if i >= nr {
			continue
		}
		for j := 0; j < nh; j++ {
			w := c.Get(c.RefLabels[i], c.HypLabels[j])
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return nil, &AssignmentError{Reason: fmt.Sprintf("non-finite weight for (%s, %s)", c.RefLabels[i], c.HypLabels[j])}
			}
			cost[i][j] = -w
		}
	}

	assign, err := hungarian(cost)
	if err != nil {
		return nil, err
	}
	for i := 0; i < nr; i++ {
		j := assign[i]
		if j < 0 || j >= nh {
			continue
		}
		if c.Get(c.RefLabels[i], c.HypLabels[j]) > 0 {
			mapping[c.RefLabels[i]] = c.HypLabels[j]
		}
	}
	return mapping, nil
}

// hungarian solves the minimum-cost assignment for a square cost matrix and
// returns the column assigned to each row.
func hungarian(cost [][]float64) ([]int, error) {
	n := len(cost)
	for i, row := range cost {
		if len(row) != n {
			return nil, &AssignmentError{Reason: fmt.Sprintf("row %d has %d columns, want %d", i, len(row), n)}
		}
	}

	// 1-indexed potentials; p[j] is the row matched to column j, 0 = free.
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1)
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			if j1 == 0 {
				return nil, &AssignmentError{Reason: fmt.Sprintf("no augmenting column for row %d", i)}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}
	for j := 1; j <= n; j++ {
		if p[j] > 0 {
			assign[p[j]-1] = j - 1
		}
	}
	for i, j := range assign {
		if j < 0 {
			return nil, &AssignmentError{Reason: fmt.Sprintf("row %d left unassigned", i)}
		}
	}
	return assign, nil
}
