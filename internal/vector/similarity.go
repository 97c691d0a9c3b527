package vector

import (
	"math"

	"github.com/hyperjump/vectorgraph/internal/models"
)

// Dot returns the inner product of two equal-length vectors.
func Dot(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// SquaredL2 returns the squared Euclidean distance of two equal-length vectors.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of a and b. Similarity against a zero
// vector is 0.
func Cosine(a, b []float32) float64 {
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// scorer computes a query-vs-stored score given the stored vector's norm,
// which lets cosine avoid recomputing stored norms on every query.
type scorer func(query []float32, queryNorm float64, stored []float32, storedNorm float64) float64

func scorerFor(d models.Distance) scorer {
	switch d {
	case models.DistanceCosine:
		return func(q []float32, qn float64, s []float32, sn float64) float64 {
			if qn == 0 || sn == 0 {
				return 0
			}
			return Dot(q, s) / (qn * sn)
		}
	case models.DistanceDot:
		return func(q []float32, _ float64, s []float32, _ float64) float64 {
			return Dot(q, s)
		}
	default:
		return func(q []float32, _ float64, s []float32, _ float64) float64 {
			return SquaredL2(q, s)
		}
	}
}
