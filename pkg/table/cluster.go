package table

import (
	"math"
	"sort"
)

// Cluster is a group of values considered equal for layout purposes.
// Members index into the slice passed to Cluster1D.
type Cluster struct {
	Center  float64
	Members []int
}

// Cluster1D sorts values and sweeps them once, adding each value to the
// current cluster when it lies within tolerance of the cluster's running mean
// and starting a new cluster otherwise. Clusters are returned in ascending
// order of their centers.
func Cluster1D(values []float64, tolerance float64) []Cluster {
	if len(values) == 0 {
		return nil
	}

	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] < values[order[b]]
	})

	var (
		clusters []Cluster
		sum      float64
	)
	for _, idx := range order {
		v := values[idx]
		if n := len(clusters); n > 0 {
			current := &clusters[n-1]
			if math.Abs(v-current.Center) <= tolerance {
				current.Members = append(current.Members, idx)
				sum += v
				current.Center = sum / float64(len(current.Members))
				continue
			}
		}
		clusters = append(clusters, Cluster{Center: v, Members: []int{idx}})
		sum = v
	}

	return clusters
}

// nearest returns the index of the center closest to x. Ties go to the lower index.
func nearest(centers []float64, x float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range centers {
		if d := math.Abs(x - c); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
