package tensor

import "math"

// Dot returns the inner product of a and b accumulated in float64.
// The slices must have equal length.
func Dot[T Float](a, b []T) T {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return T(s)
}

// Norm2 returns the Euclidean norm of a.
func Norm2[T Float](a []T) T {
	var s float64
	for _, v := range a {
		s += float64(v) * float64(v)
	}
	return T(math.Sqrt(s))
}

// Dist2 returns the Euclidean distance ‖a − b‖₂.
func Dist2[T Float](a, b []T) T {
	var s float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		s += d * d
	}
	return T(math.Sqrt(s))
}

// Axpy computes y ← alpha·x + y in place.
func Axpy[T Float](alpha T, x, y []T) {
	for i := range y {
		y[i] += alpha * x[i]
	}
}

// Scale computes x ← alpha·x in place.
func Scale[T Float](alpha T, x []T) {
	for i := range x {
		x[i] *= alpha
	}
}

// Fill sets every element of x to v.
func Fill[T Float](x []T, v T) {
	for i := range x {
		x[i] = v
	}
}

// Clone returns a copy of x.
func Clone[T Float](x []T) []T {
	out := make([]T, len(x))
	copy(out, x)
	return out
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite[T Float](v T) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// FirstNonFinite returns the index of the first NaN or ±Inf element of x,
// or -1 if every element is finite.
func FirstNonFinite[T Float](x []T) int {
	for i, v := range x {
		if !IsFinite(v) {
			return i
		}
	}
	return -1
}
