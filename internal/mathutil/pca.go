package mathutil

import (
	"gonum.org/v1/gonum/mat"
)

// PrincipalAxis computes the centroid of pts and the unit eigenvector of their
// covariance with the largest eigenvalue. ok is false for fewer than two
// points or a failed decomposition.
func PrincipalAxis(pts []Vec3) (centroid, axis Vec3, ok bool) {
	if len(pts) == 0 {
		return Vec3{}, Vec3{}, false
	}
	for _, p := range pts {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Scale(1 / float64(len(pts)))
	if len(pts) < 2 {
		return centroid, Vec3{}, false
	}

	var cov [6]float64 // xx xy xz yy yz zz
	for _, p := range pts {
		d := p.Sub(centroid)
		cov[0] += d[0] * d[0]
		cov[1] += d[0] * d[1]
		cov[2] += d[0] * d[2]
		cov[3] += d[1] * d[1]
		cov[4] += d[1] * d[2]
		cov[5] += d[2] * d[2]
	}
	sym := mat.NewSymDense(3, []float64{
		cov[0], cov[1], cov[2],
		cov[1], cov[3], cov[4],
		cov[2], cov[4], cov[5],
	})

	var es mat.EigenSym
	if !es.Factorize(sym, true) {
		return centroid, Vec3{}, false
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	// Eigenvalues come back in ascending order.
	best := len(vals) - 1
	if vals[best] <= Epsilon {
		return centroid, Vec3{}, false
	}
	axis = Vec3{vecs.At(0, best), vecs.At(1, best), vecs.At(2, best)}.Normalize()
	return centroid, axis, true
}
