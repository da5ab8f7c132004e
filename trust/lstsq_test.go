// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trust

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func solveMinNorm(b *mat.SymDense, r []float64) ([]float64, int) {
	var ls minNorm
	p := make([]float64, len(r))
	k := ls.solve(b, r, p)
	return p, k
}

func TestMinNormRankDeficient(t *testing.T) {
	// 𝐁 = 𝐮₁𝐮₁ᵀ + 𝐮₂𝐮₂ᵀ with 𝐮₁ = (1,1,0,0) and 𝐮₂ = (0,1,1,0)
	b := mat.NewSymDense(4, []float64{
		1, 1, 0, 0,
		1, 2, 1, 0,
		0, 1, 1, 0,
		0, 0, 0, 0,
	})
	r := []float64{1, 1, 0, 0}

	p, k := solveMinNorm(b, r)
	if k != 2 {
		t.Fatal("unexpected pseudo-rank", k)
	}
	if !floats.EqualApprox(p, []float64{2. / 3, 1. / 3, -1. / 3, 0}, 1e-12) {
		t.Fatal("unexpected minimum-length solution", p)
	}

	bp := mat.NewVecDense(4, nil)
	bp.MulVec(b, mat.NewVecDense(4, p))
	if !floats.EqualApprox(bp.RawVector().Data, r, 1e-12) {
		t.Fatal("solution does not satisfy the system", bp.RawVector().Data)
	}
	for _, null := range [][]float64{{0, 0, 0, 1}, {1, -1, 1, 0}} {
		if d := floats.Dot(p, null); d > 1e-12 || d < -1e-12 {
			t.Fatal("solution has a null-space component", null, d)
		}
	}
}

func TestMinNormFullRank(t *testing.T) {
	const m = 7
	rnd := rand.New(rand.NewPCG(11, 13))

	q := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			q.Set(i, j, rnd.NormFloat64())
		}
	}
	b := mat.NewSymDense(m, nil)
	b.SymOuterK(1, q)
	for i := 0; i < m; i++ {
		b.SetSym(i, i, b.At(i, i)+1)
	}
	r := make([]float64, m)
	for i := range r {
		r[i] = rnd.NormFloat64()
	}

	p, k := solveMinNorm(b, r)
	if k != m {
		t.Fatal("unexpected pseudo-rank", k)
	}

	var chol mat.Cholesky
	if !chol.Factorize(b) {
		t.Fatal("test matrix is not positive definite")
	}
	want := mat.NewVecDense(m, nil)
	if err := chol.SolveVecTo(want, mat.NewVecDense(m, r)); err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(p, want.RawVector().Data, 1e-10) {
		t.Fatal("least-squares solution disagrees with cholesky", p, want.RawVector().Data)
	}
}

func TestMinNormZero(t *testing.T) {
	p, k := solveMinNorm(mat.NewSymDense(3, nil), []float64{1, 2, 3})
	if k != 0 || floats.Norm(p, 2) != 0 {
		t.Fatal("expect zero solution of zero matrix", k, p)
	}
}

func TestMinNormNonFinite(t *testing.T) {
	b := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	b.SetSym(0, 1, math.Inf(1))
	p, k := solveMinNorm(b, []float64{1, 1})
	if k != 0 || p[0] != 0 || p[1] != 0 {
		t.Fatal("expect zero solution of non-finite matrix", k, p)
	}
}
