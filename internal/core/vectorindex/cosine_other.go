//go:build !arm64

package vectorindex

import "github.com/viant/vec/search"

// cosineDistanceWithMagnitude calls the library's exported method, which
// github.com/viant/vec/search names differently per architecture.
func cosineDistanceWithMagnitude(a search.Float32s, b []float32, ma, mb float32) float32 {
	return a.CosineDistanceWithMagnitudesNeon(b, ma, mb)
}
