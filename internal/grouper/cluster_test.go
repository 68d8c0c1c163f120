package grouper

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 0}, b: []float32{1, 0}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "length mismatch", a: []float32{1, 0}, b: []float32{1}, want: 0},
		{name: "empty", a: nil, b: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCentroidOfNormalizes(t *testing.T) {
	centroid := centroidOf([][]float32{{1, 0}, {0, 1}})

	require.Len(t, centroid, 2)
	assert.InDelta(t, 1, float64(centroid[0]*centroid[0]+centroid[1]*centroid[1]), 1e-6)
	assert.InDelta(t, centroid[0], centroid[1], 1e-6)
}

func TestClusterSeparatesDenseRegions(t *testing.T) {
	points := []point{
		{id: "a1", vec: []float32{1, 0, 0}},
		{id: "a2", vec: []float32{1, 0, 0}},
		{id: "b1", vec: []float32{0, 1, 0}},
		{id: "b2", vec: []float32{0, 1, 0}},
		{id: "lone", vec: []float32{0, 0, 1}},
	}

	clusters, noise := cluster(points, 0.3, 2)

	require.Len(t, clusters, 2)
	require.Len(t, noise, 1)
	assert.Equal(t, "lone", points[noise[0]].id)

	for _, members := range clusters {
		assert.Len(t, members, 2)
	}
}

func TestClusterAttachesBorderPoint(t *testing.T) {
	// Three mutually close core points and a border point within eps of
	// only the outermost one. The border point lacks the neighbor count to
	// be core but still joins the cluster.
	points := []point{
		{id: "a1", vec: unitAt(0)},
		{id: "a2", vec: unitAt(5)},
		{id: "a3", vec: unitAt(10)},
		{id: "edge", vec: unitAt(33)},
	}

	clusters, noise := cluster(points, 0.1, 3)

	require.Len(t, clusters, 1)
	assert.Empty(t, noise)

	ids := make([]string, 0, len(clusters[0]))
	for _, m := range clusters[0] {
		ids = append(ids, points[m].id)
	}

	assert.ElementsMatch(t, []string{"a1", "a2", "a3", "edge"}, ids)
}

func TestPickClusterPrefersClosestCentroidThenSmallestID(t *testing.T) {
	points := []point{
		{id: "a1", vec: unitAt(0)},
		{id: "b1", vec: unitAt(90)},
		{id: "c1", vec: unitAt(90)},
	}
	clusters := [][]int{{0}, {1}, {2}}
	centroids := [][]float32{points[0].vec, points[1].vec, points[2].vec}

	// Closer centroid wins.
	got := pickCluster(points, clusters, centroids, []int{0, 1}, unitAt(10))
	assert.Equal(t, 0, got)

	// Equidistant centroids fall back to the smaller minimum member id.
	got = pickCluster(points, clusters, centroids, []int{1, 2}, unitAt(90))
	assert.Equal(t, 1, got)
}

// unitAt returns the unit vector at the given angle in degrees.
func unitAt(deg float64) []float32 {
	rad := deg * math.Pi / 180

	return []float32{float32(math.Cos(rad)), float32(math.Sin(rad))}
}

func TestClusterEmptyInput(t *testing.T) {
	clusters, noise := cluster(nil, 0.3, 2)

	assert.Empty(t, clusters)
	assert.Empty(t, noise)
}
