package connectome

import (
	"container/heap"
	"math"

	"github.com/gonum/matrix/mat64"
)

// Metrics summarizes the graph built from a thresholded connectivity matrix.
// Path-based measures treat edge weights as connection strengths, using
// 1/weight as traversal length.
type Metrics struct {
	Nodes            int       `json:"nodes"`
	Edges            int       `json:"edges"`
	Density          float64   `json:"density"`
	Degree           []int     `json:"degree"`
	Strength         []float64 `json:"strength"`
	Clustering       []float64 `json:"clustering"`
	MeanClustering   float64   `json:"mean_clustering"`
	CharPathLength   float64   `json:"char_path_length"`
	GlobalEfficiency float64   `json:"global_efficiency"`
}

// ComputeMetrics derives graph metrics from a symmetric weighted matrix with
// zero diagonal, as produced by Build.
func ComputeMetrics(m *mat64.Dense) Metrics {
	n, _ := m.Dims()
	metrics := Metrics{
		Nodes:      n,
		Degree:     make([]int, n),
		Strength:   make([]float64, n),
		Clustering: make([]float64, n),
	}

	edges := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if w := m.At(i, j); w > 0 {
				metrics.Degree[i]++
				metrics.Strength[i] += w
				if j > i {
					edges++
				}
			}
		}
	}
	metrics.Edges = edges
	if n > 1 {
		metrics.Density = float64(2*edges) / float64(n*(n-1))
	}

	clusterSum := 0.0
	for i := 0; i < n; i++ {
		metrics.Clustering[i] = clusteringCoefficient(m, i)
		clusterSum += metrics.Clustering[i]
	}
	if n > 0 {
		metrics.MeanClustering = clusterSum / float64(n)
	}

	metrics.CharPathLength, metrics.GlobalEfficiency = pathMeasures(m)
	return metrics
}

// clusteringCoefficient is the binary clustering coefficient of node i: the
// fraction of its neighbour pairs that are themselves connected.
func clusteringCoefficient(m *mat64.Dense, i int) float64 {
	n, _ := m.Dims()
	var neighbours []int
	for j := 0; j < n; j++ {
		if j != i && m.At(i, j) > 0 {
			neighbours = append(neighbours, j)
		}
	}
	k := len(neighbours)
	if k < 2 {
		return 0
	}
	links := 0
	for a := 0; a < k; a++ {
		for b := a + 1; b < k; b++ {
			if m.At(neighbours[a], neighbours[b]) > 0 {
				links++
			}
		}
	}
	return float64(2*links) / float64(k*(k-1))
}

// pathMeasures runs Dijkstra from every node over 1/weight edge lengths and
// returns the characteristic path length (mean finite shortest path) and
// global efficiency (mean inverse shortest path, zero for unreachable pairs).
func pathMeasures(m *mat64.Dense) (float64, float64) {
	n, _ := m.Dims()
	if n < 2 {
		return 0, 0
	}

	pathSum := 0.0
	pathCount := 0
	efficiencySum := 0.0
	pairs := 0
	for src := 0; src < n; src++ {
		dist := dijkstra(m, src)
		for dst := 0; dst < n; dst++ {
			if dst == src {
				continue
			}
			pairs++
			if math.IsInf(dist[dst], 1) {
				continue
			}
			pathSum += dist[dst]
			pathCount++
			efficiencySum += 1 / dist[dst]
		}
	}

	charPath := 0.0
	if pathCount > 0 {
		charPath = pathSum / float64(pathCount)
	}
	return charPath, efficiencySum / float64(pairs)
}

type queueItem struct {
	node int
	dist float64
}

type distHeap []queueItem

func (h distHeap) Len() int            { return len(h) }
func (h distHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h distHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *distHeap) Push(x interface{}) { *h = append(*h, x.(queueItem)) }
func (h *distHeap) Pop() interface{} {
	old := *h
	item := old[len(old)-1]
	*h = old[:len(old)-1]
	return item
}

func dijkstra(m *mat64.Dense, src int) []float64 {
	n, _ := m.Dims()
	dist := make([]float64, n)
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	dist[src] = 0

	h := &distHeap{{node: src, dist: 0}}
	for h.Len() > 0 {
		item := heap.Pop(h).(queueItem)
		if item.dist > dist[item.node] {
			continue
		}
		for j := 0; j < n; j++ {
			w := m.At(item.node, j)
			if w <= 0 {
				continue
			}
			next := item.dist + 1/w
			if next < dist[j] {
				dist[j] = next
				heap.Push(h, queueItem{node: j, dist: next})
			}
		}
	}
	return dist
}
