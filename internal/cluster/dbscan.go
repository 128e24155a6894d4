package cluster

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Noise is the label of points that belong to no cluster.
const Noise = -1

// CosineDistance returns 1 - cos(a, b). A zero vector is treated as
// orthogonal to everything.
func CosineDistance(a, b []float64, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - floats.Dot(a, b)/(normA*normB)
}

// DBSCAN labels points with cosine distance. A point is core when at least
// minSamples points, itself included, lie within eps. Points are visited in
// index order, so a border point reachable from two clusters joins whichever
// cluster reaches it first.
func DBSCAN(points [][]float64, eps float64, minSamples int) ([]int, error) {
	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	if n == 0 {
		return labels, nil
	}

	dim := len(points[0])
	norms := make([]float64, n)
	for i, p := range points {
		if len(p) != dim {
			return nil, fmt.Errorf("embedding dimension mismatch: point %d has %d, want %d", i, len(p), dim)
		}
		norms[i] = floats.Norm(p, 2)
	}

	neighbors := make([][]int, n)
	for i := 0; i < n; i++ {
		neighbors[i] = append(neighbors[i], i)
		for j := i + 1; j < n; j++ {
			if CosineDistance(points[i], points[j], norms[i], norms[j]) <= eps {
				neighbors[i] = append(neighbors[i], j)
				neighbors[j] = append(neighbors[j], i)
			}
		}
	}

	core := make([]bool, n)
	for i := range neighbors {
		core[i] = len(neighbors[i]) >= minSamples
	}

	label := 0
	var stack []int
	for i := 0; i < n; i++ {
		if labels[i] != Noise || !core[i] {
			continue
		}

		p := i
		for {
			if labels[p] == Noise {
				labels[p] = label
				if core[p] {
					for _, v := range neighbors[p] {
						if labels[v] == Noise {
							stack = append(stack, v)
						}
					}
				}
			}
			if len(stack) == 0 {
				break
			}
			p = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		}
		label++
	}

	return labels, nil
}
