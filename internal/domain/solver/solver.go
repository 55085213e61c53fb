// Package solver solves the two-variable notification integer program:
//
//	maximize   Profit·accepted − Cost·notified
//	subject to 0 ≤ notified ≤ MaxNotified
//	           0 ≤ accepted ≤ MaxAccepted
//	           accepted = Rate·notified
//	           notified, accepted integer
//
// The domain is bounded by the remaining pool, so the solver enumerates it
// exactly instead of relaxing to a linear program.
package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

const integralTolerance = 1e-9

// Program is one instance of the notification integer program.
type Program struct {
	Profit      float64 // value of one accepted candidate
	Cost        float64 // cost of one notification
	Rate        float64 // acceptance rate linking accepted to notified
	MaxNotified int
	MaxAccepted int
}

// Solution is an optimal integer assignment.
type Solution struct {
	Notified  int
	Accepted  int
	Objective float64
}

// Solver solves a Program.
type Solver interface {
	Solve(p Program) (Solution, error)
}

// Enumerator is the exact Solver for bounded programs.
type Enumerator struct{}

var _ Solver = Enumerator{}

// Solve returns the optimal assignment. Ties keep the fewest notifications.
func (Enumerator) Solve(p Program) (Solution, error) {
	if err := p.validate(); err != nil {
		return Solution{}, err
	}
	if p.MaxNotified < 0 || p.MaxAccepted < 0 {
		return Solution{}, fmt.Errorf("%w: negative bounds notified<=%d accepted<=%d",
			ErrInfeasible, p.MaxNotified, p.MaxAccepted)
	}

	best, found := Solution{}, false
	for n := 0; n <= p.MaxNotified; n++ {
		a, ok := p.accepted(n)
		if !ok {
			continue
		}
		obj := p.Profit*float64(a) - p.Cost*float64(n)
		if !found || obj > best.Objective {
			best, found = Solution{Notified: n, Accepted: a, Objective: obj}, true
		}
	}
	if !found {
		return Solution{}, fmt.Errorf("%w: rate %v", ErrInfeasible, p.Rate)
	}
	return best, nil
}

// accepted returns the integral accepted count for n notifications, if it
// satisfies the accepted bounds.
func (p Program) accepted(n int) (int, bool) {
	exact := p.Rate * float64(n)
	rounded := math.Round(exact)
	if !scalar.EqualWithinAbs(exact, rounded, integralTolerance) {
		return 0, false
	}
	a := int(rounded)
	if a < 0 || a > p.MaxAccepted {
		return 0, false
	}
	return a, true
}

func (p Program) validate() error {
	for name, v := range map[string]float64{"profit": p.Profit, "cost": p.Cost, "rate": p.Rate} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is %v", ErrInvalidProgram, name, v)
		}
	}
	return nil
}
