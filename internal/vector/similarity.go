package vector

// CosineDistance returns 1 minus the inner product of two vectors.
// For unit-normalized vectors this equals the cosine distance.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot float64
	for i := range a {
		dot += float64(a[i] * b[i])
	}
	return 1 - dot
}
