// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trust

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// rankTol is the relative tolerance of the pseudo-rank: singular values
// below rankTol × σ₀ are treated as zero.
const rankTol = 1e-12

// minNorm solves
//
//	𝐁𝐩 ≅ 𝐫   𝐁 ∈ ℝᵐˣᵐ symmetric positive semi-definite
//
// for the least-squares solution of minimum length, used when the curvature is
// too ill-conditioned for a Cholesky factorization.
//
// With the thin decomposition 𝐁 = 𝐔𝚺𝐕ᵀ and the pseudo-rank k counting the
// singular values above rankTol × σ₀, the solution is
//
//	𝐩 = 𝐕ₖ𝚺ₖ⁻¹𝐔ₖᵀ𝐫
//
// which has no component in the numerical null space of 𝐁.
type minNorm struct {
	svd mat.SVD
}

// solve stores the minimum-length solution into dst and returns the pseudo-rank.
// A zero rank leaves dst zero, which is also the answer for a non-finite 𝐁.
func (s *minNorm) solve(b mat.Symmetric, r, dst []float64) int {
	m := b.SymmetricDim()
	clear(dst[:m])
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			if v := b.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return 0
			}
		}
	}
	if !s.svd.Factorize(b, mat.SVDThin) {
		return 0
	}
	k := s.svd.Rank(rankTol)
	if k == 0 {
		return 0
	}
	s.svd.SolveVecTo(mat.NewVecDense(m, dst[:m]), mat.NewVecDense(m, r[:m]), k)
	return k
}
