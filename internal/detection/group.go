package detection

import "math"

// GroupRegions merges overlapping raw window hits into one region per object.
//
// Two hits belong together when every edge of one lies within
// eps*(avg side) of the matching edge of the other; grouping is transitive.
// Each group becomes the rounded average of its members and is kept when it
// has at least minNeighbors members. A kept group that sits inside a
// noticeably stronger group is dropped as a duplicate.
//
// minNeighbors <= 0 returns the hits unchanged. Groups are returned in the
// order their first member appears in hits.
func GroupRegions(hits []Region, minNeighbors int, eps float64) []Region {
	if minNeighbors <= 0 || len(hits) == 0 {
		out := make([]Region, len(hits))
		copy(out, hits)
		return out
	}

	labels, nclasses := partition(hits, eps)

	type acc struct {
		x, y, w, h float64
		n          int
		score      float64
	}
	sums := make([]acc, nclasses)
	for i, r := range hits {
		a := &sums[labels[i]]
		a.x += float64(r.X)
		a.y += float64(r.Y)
		a.w += float64(r.Width)
		a.h += float64(r.Height)
		if a.n == 0 || r.Score > a.score {
			a.score = r.Score
		}
		a.n++
	}

	groups := make([]Region, nclasses)
	for i, a := range sums {
		s := 1 / float64(a.n)
		groups[i] = Region{
			X:         int(math.RoundToEven(a.x * s)),
			Y:         int(math.RoundToEven(a.y * s)),
			Width:     int(math.RoundToEven(a.w * s)),
			Height:    int(math.RoundToEven(a.h * s)),
			Neighbors: a.n,
			Score:     a.score,
		}
	}

	out := make([]Region, 0, nclasses)
	for i, r1 := range groups {
		n1 := r1.Neighbors
		if n1 < minNeighbors {
			continue
		}
		nested := false
		for j, r2 := range groups {
			n2 := r2.Neighbors
			if j == i || n2 < minNeighbors {
				continue
			}
			dx := int(math.RoundToEven(float64(r2.Width) * eps))
			dy := int(math.RoundToEven(float64(r2.Height) * eps))
			if r1.X >= r2.X-dx && r1.Y >= r2.Y-dy &&
				r1.X+r1.Width <= r2.X+r2.Width+dx &&
				r1.Y+r1.Height <= r2.Y+r2.Height+dy &&
				(n2 > max(3, n1) || n1 < 3) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, r1)
		}
	}
	return out
}

// similar reports whether a and b describe the same object.
func similar(a, b Region, eps float64) bool {
	delta := eps * float64(min(a.Width, b.Width)+min(a.Height, b.Height)) * 0.5
	return math.Abs(float64(a.X-b.X)) <= delta &&
		math.Abs(float64(a.Y-b.Y)) <= delta &&
		math.Abs(float64(a.X+a.Width-b.X-b.Width)) <= delta &&
		math.Abs(float64(a.Y+a.Height-b.Y-b.Height)) <= delta
}

// partition labels hits with the transitive closure of similar. Labels are
// numbered by first appearance.
func partition(hits []Region, eps float64) ([]int, int) {
	parent := make([]int, len(hits))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for i := range hits {
		for j := i + 1; j < len(hits); j++ {
			if !similar(hits[i], hits[j], eps) {
				continue
			}
			ri, rj := find(i), find(j)
			if ri == rj {
				continue
			}
			if ri < rj {
				parent[rj] = ri
			} else {
				parent[ri] = rj
			}
		}
	}

	labels := make([]int, len(hits))
	ids := make(map[int]int)
	for i := range hits {
		root := find(i)
		id, ok := ids[root]
		if !ok {
			id = len(ids)
			ids[root] = id
		}
		labels[i] = id
	}
	return labels, len(ids)
}
