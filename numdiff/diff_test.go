// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package numdiff

import (
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

func objV2(x, y []float64) {
	y[0] = x[0] * math.Sin(x[1])
	y[1] = x[1] * math.Cos(x[0])
	y[2] = math.Pow(x[0], 3) * math.Pow(x[1], -0.5)
}

func jacV2(x []float64) []float64 {
	return []float64{
		math.Sin(x[1]), x[0] * math.Cos(x[1]),
		-x[1] * math.Sin(x[0]), math.Cos(x[0]),
		3 * math.Pow(x[0], 2) * math.Pow(x[1], -0.5), -0.5 * math.Pow(x[0], 3) * math.Pow(x[1], -1.5),
	}
}

func objZero(x, y []float64) {
	y[0] = x[0] * x[1]
	y[1] = math.Cos(x[0] * x[1])
}

func jacZero(x []float64) []float64 {
	return []float64{
		x[1], x[0],
		-x[1] * math.Sin(x[0]*x[1]), -x[0] * math.Sin(x[0]*x[1]),
	}
}

// Case Sources : https://github.com/scipy/scipy/blob/main/scipy/optimize/tests/test__numdiff.py (test_compute_absolute_step)
func TestComputeAbsStp(t *testing.T) {

	x0 := []float64{1e-5, 0, 1, 1e5}

	// auto select relative step
	for method, relStep := range map[Method]float64{
		Forward: sqrtEps,
		Central: cubeEps,
	} {

		expected := []float64{
			relStep,
			relStep * 1,
			relStep * 1,
			relStep * math.Abs(x0[3]),
		}

		as := ApproxSpec{Method: method}
		_ = as.check(4, 1)

		as.absoluteStep(x0)
		if !relativeEqual(as.absStep, expected, 1e-12) {
			t.Fatal("unexpected abs step")
		}

		negX0 := make([]float64, len(x0))
		for i, v := range x0 {
			negX0[i] = -v
			if method == Forward {
				expected[i] = math.Copysign(expected[i], -v)
			}
		}

		as.absoluteStep(negX0)
		if !relativeEqual(as.absStep, expected, 1e-12) {
			t.Fatal("unexpected abs step")
		}
	}

	// user-specified relative step
	for _, relStep := range []float64{0.1, 1, 10, 100} {

		expected := []float64{
			relStep * x0[0],
			sqrtEps,
			relStep * x0[2],
			relStep * x0[3],
		}

		as := ApproxSpec{Method: Forward, RelStep: relStep}
		_ = as.check(4, 1)

		as.absoluteStep(x0)
		if !relativeEqual(as.absStep, expected, 1e-12) {
			t.Fatal("unexpected abs step")
		}
	}
}

// Case Sources : https://github.com/scipy/scipy/blob/main/scipy/optimize/tests/test__numdiff.py (test_absolute_step_sign)
func TestAbsStpSign(t *testing.T) {

	obj := func(x []float64) float64 {
		return -math.Abs(x[0]+1) + math.Abs(x[1]+1)
	}

	x0 := []float64{-1, -1}
	grad := []float64{0, 0}

	as := ApproxSpec{Method: Forward, AbsStep: 1e-8}
	if err := as.Gradient(grad, obj, x0); err != nil {
		t.Fatal("abs sign failed", err)
	}
	if !relativeEqual(grad, []float64{-1.0, 1.0}, 1e-7) {
		t.Fatal("unexpected abs sign")
	}

	as = ApproxSpec{Method: Forward, AbsStep: -1e-8}
	if err := as.Gradient(grad, obj, x0); err != nil {
		t.Fatal("abs sign failed", err)
	}
	if !relativeEqual(grad, []float64{1.0, -1.0}, 1e-7) {
		t.Fatal("unexpected abs sign")
	}
}

// Case Sources : https://github.com/scipy/scipy/blob/main/scipy/optimize/tests/test__numdiff.py
// (TestApproxDerivativesDense.test_scalar_vector)
func TestScalarVec(t *testing.T) {
	x0 := []float64{0.5}
	obj := func(x, y []float64) {
		y[0] = x[0] * x[0]
		y[1] = math.Tan(x[0])
		y[2] = math.Exp(x[0])
	}

	jac1 := []float64{
		2 * x0[0],
		1 / (math.Cos(x0[0]) * math.Cos(x0[0])),
		math.Exp(x0[0]),
	}

	jac2 := mat.NewDense(3, 1, nil)
	jac3 := mat.NewDense(3, 1, nil)

	as := ApproxSpec{Method: Forward}
	if err := as.Jacobian(jac2, obj, x0); err != nil {
		t.Fatal("approx scalar-vec failed", err)
	}
	as = ApproxSpec{Method: Central}
	if err := as.Jacobian(jac3, obj, x0); err != nil {
		t.Fatal("approx scalar-vec failed", err)
	}
	if !relativeEqual(jac2.RawMatrix().Data, jac1, 1e-6) {
		t.Fatal("unexpected approx scalar-vec result")
	}
	if !relativeEqual(jac3.RawMatrix().Data, jac1, 1e-9) {
		t.Fatal("unexpected approx scalar-vec result")
	}
}

// Case Sources : https://github.com/scipy/scipy/blob/main/scipy/optimize/tests/test__numdiff.py
// (TestApproxDerivativesDense.test_vector_vector)
func TestVector(t *testing.T) {

	x0 := []float64{-100.0, 0.2}
	jac1 := jacV2(x0)
	jac2 := mat.NewDense(3, 2, nil)
	jac3 := mat.NewDense(3, 2, nil)

	as := ApproxSpec{Method: Forward}
	if err := as.Jacobian(jac2, objV2, x0); err != nil {
		t.Fatal("approx vector failed", err)
	}
	as = ApproxSpec{Method: Central}
	if err := as.Jacobian(jac3, objV2, x0); err != nil {
		t.Fatal("approx vector failed", err)
	}
	if !relativeEqual(jac1, jac2.RawMatrix().Data, 1e-5) {
		t.Fatal("unexpected approx vector result")
	}
	if !relativeEqual(jac1, jac3.RawMatrix().Data, 1e-6) {
		t.Fatal("unexpected approx vector result")
	}
	if x0[0] != -100.0 || x0[1] != 0.2 {
		t.Fatal("x0 not restored")
	}
}

func TestAccuracy(t *testing.T) {

	checkDerivative := func(m int, x0 []float64,
		fun func(x, y []float64),
		jac func(x []float64) []float64) float64 {

		jacDiff := mat.NewDense(m, len(x0), nil)
		approx := ApproxSpec{Method: Central}
		if err := approx.Jacobian(jacDiff, fun, x0); err != nil {
			panic(err)
		}
		return MaxRelDiff(jac(x0), jacDiff.RawMatrix().Data)
	}

	if acc := checkDerivative(3, []float64{-10.0, 10}, objV2, jacV2); acc > 1e-9 {
		t.Fatal("approx accuracy not enough", acc)
	}
	if acc := checkDerivative(2, []float64{0, 0}, objZero, jacZero); acc > 0 {
		t.Fatal("approx accuracy not enough", acc)
	}
}

func TestAgreeWithGonum(t *testing.T) {
	obj := func(x []float64) float64 {
		return math.Exp(x[0]-x[1]) + x[0]*x[0]*math.Log1p(x[1]*x[1])
	}
	x0 := []float64{0.3, -1.2}

	grad := make([]float64, 2)
	as := ApproxSpec{Method: Central}
	if err := as.Gradient(grad, obj, x0); err != nil {
		t.Fatal(err)
	}
	want := fd.Gradient(nil, obj, x0, &fd.Settings{Formula: fd.Central})
	if MaxRelDiff(grad, want) > 1e-7 {
		t.Fatal("gradient disagrees with gonum", grad, want)
	}
}

func TestBadArgs(t *testing.T) {
	as := ApproxSpec{Method: Method(7)}
	if err := as.Gradient([]float64{0}, func(x []float64) float64 { return x[0] }, []float64{1}); err == nil {
		t.Fatal("expect unknown method error")
	}
	as = ApproxSpec{}
	if err := as.Gradient(nil, func(x []float64) float64 { return x[0] }, []float64{1}); err == nil {
		t.Fatal("expect dimension error")
	}
	if err := as.Gradient([]float64{0}, nil, []float64{1}); err == nil {
		t.Fatal("expect missing function error")
	}
	if err := as.Jacobian(mat.NewDense(1, 2, nil), objZero, []float64{1}); err == nil {
		t.Fatal("expect dimension error")
	}
}

func relativeEqual[T float64 | []float64](a, b T, tol float64) bool {
	equalWithinRel := func(a, b float64) bool {
		if a == b {
			return true
		}
		delta := math.Abs(a - b)
		return delta/math.Max(math.Abs(a), math.Abs(b)) <= tol
	}
	switch reflect.TypeFor[T]().Kind() {
	case reflect.Float64:
		return equalWithinRel(any(a).(float64), any(b).(float64))
	case reflect.Slice:
		a, b := any(a).([]float64), any(b).([]float64)
		if len(a) != len(b) {
			return false
		}
		for i, a := range a {
			if !equalWithinRel(a, b[i]) {
				return false
			}
		}
		return true
	default:
		panic("unknown type")
	}
}
