package grouper

import (
	"math"
	"sort"
)

// point is one embeddable article inside the clustering pass.
type point struct {
	id  string
	vec []float32
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or empty vectors score zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}

	// Inputs are unit vectors, so the dot product is the cosine.
	return dot
}

// cosineDistance is 1 − cos(u,v).
func cosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}

// centroidOf averages the given vectors and re-normalizes to unit length,
// keeping the cosine-distance contract for centroid comparisons.
func centroidOf(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}

	centroid := make([]float32, len(vecs[0]))
	for _, v := range vecs {
		for i := range v {
			centroid[i] += v[i]
		}
	}

	n := float32(len(vecs))
	for i := range centroid {
		centroid[i] /= n
	}

	return normalize(centroid)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}

	return v
}

// cluster runs the density pass: core points are those with at least
// minPts neighbors (self included) within eps; clusters are connected
// components of core points; border points attach to the cluster with the
// closest core-centroid, ties broken by the smaller minimum member id.
func cluster(points []point, eps float64, minPts int) ([][]int, []int) {
	n := len(points)
	neighbors := make([][]int, n)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if cosineDistance(points[i].vec, points[j].vec) <= eps {
				neighbors[i] = append(neighbors[i], j)
			}
		}
	}

	core := make([]bool, n)
	for i := 0; i < n; i++ {
		core[i] = len(neighbors[i]) >= minPts
	}

	// Connected components over core points.
	clusterOf := make([]int, n)
	for i := range clusterOf {
		clusterOf[i] = -1
	}

	var clusters [][]int

	for i := 0; i < n; i++ {
		if !core[i] || clusterOf[i] != -1 {
			continue
		}

		id := len(clusters)
		queue := []int{i}
		clusterOf[i] = id

		var members []int

		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]
			members = append(members, p)

			for _, q := range neighbors[p] {
				if core[q] && clusterOf[q] == -1 {
					clusterOf[q] = id
					queue = append(queue, q)
				}
			}
		}

		clusters = append(clusters, members)
	}

	// Core centroids for border assignment.
	centroids := make([][]float32, len(clusters))
	for id, members := range clusters {
		vecs := make([][]float32, len(members))
		for k, m := range members {
			vecs[k] = points[m].vec
		}

		centroids[id] = centroidOf(vecs)
	}

	// Attach border points: non-core points with at least one core
	// neighbor. Reachable from several clusters → closest centroid, then
	// the cluster whose smallest member id sorts first.
	var noise []int

	for i := 0; i < n; i++ {
		if core[i] {
			continue
		}

		candidates := candidateClusters(i, neighbors[i], core, clusterOf)
		if len(candidates) == 0 {
			noise = append(noise, i)
			continue
		}

		best := pickCluster(points, clusters, centroids, candidates, points[i].vec)
		clusters[best] = append(clusters[best], i)
		clusterOf[i] = best
	}

	return clusters, noise
}

func candidateClusters(i int, neigh []int, core []bool, clusterOf []int) []int {
	seen := map[int]bool{}

	var out []int

	for _, q := range neigh {
		if q == i || !core[q] {
			continue
		}

		if id := clusterOf[q]; id >= 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	sort.Ints(out)

	return out
}

func pickCluster(points []point, clusters [][]int, centroids [][]float32, candidates []int, vec []float32) int {
	best := candidates[0]
	bestDist := cosineDistance(vec, centroids[best])
	bestMin := minMemberID(points, clusters[best])

	for _, id := range candidates[1:] {
		dist := cosineDistance(vec, centroids[id])
		minID := minMemberID(points, clusters[id])

		switch {
		case dist < bestDist:
			best, bestDist, bestMin = id, dist, minID
		case dist == bestDist && minID < bestMin:
			best, bestMin = id, minID
		}
	}

	return best
}

func minMemberID(points []point, members []int) string {
	min := points[members[0]].id
	for _, m := range members[1:] {
		if points[m].id < min {
			min = points[m].id
		}
	}

	return min
}
