// Package ring implements a ketama-style consistent hash ring: weighted
// virtual nodes placed on a 32-bit circle via MD5, with binary-search
// lookup and circular wraparound.
package ring

import (
	"crypto/md5" // nolint:gosec // ketama is defined in terms of MD5, not used for security
	"fmt"
	"sort"
)

// pointsPerNode is the base number of MD5 groups contributed by a node of
// average weight, before the weight-proportional scaling below; each group
// yields four ring points, so such a node owns 160 points.
const pointsPerNode = 40

// point is one position on the ring.
type point struct {
	hash uint32
	node string
}

// HashRing maps keys to nodes via weighted virtual nodes on a 32-bit ring.
// Construction is pure: the same (nodes, weights) always yields the same
// point table, and an empty node set yields an empty ring whose GetNode
// always returns false.
type HashRing struct {
	points []point // sorted by hash
	nodes  map[string]bool
}

// New builds a ring over the given node identities. weights maps a node
// identity to its relative weight; nodes absent from weights default to 1.
// Duplicate node identities are ignored (a set, not a multiset).
func New(nodeIDs []string, weights map[string]int) *HashRing {
	r := &HashRing{nodes: make(map[string]bool, len(nodeIDs))}
	for _, id := range nodeIDs {
		r.nodes[id] = true
	}
	r.rebuild(weights)
	return r
}

func (r *HashRing) rebuild(weights map[string]int) {
	if len(r.nodes) == 0 {
		r.points = nil
		return
	}

	totalWeight := 0
	for node := range r.nodes {
		totalWeight += weightOf(weights, node)
	}

	points := make([]point, 0, pointsPerNode*len(r.nodes))
	for node := range r.nodes {
		weight := weightOf(weights, node)
		groups := (pointsPerNode * len(r.nodes) * weight) / totalWeight
		for i := 0; i < groups; i++ {
			digest := md5.Sum([]byte(fmt.Sprintf("%s-%d-salt", node, i))) // nolint:gosec
			for l := 0; l < 4; l++ {
				h := uint32(digest[l*4]) | uint32(digest[l*4+1])<<8 |
					uint32(digest[l*4+2])<<16 | uint32(digest[l*4+3])<<24
				points = append(points, point{hash: h, node: node})
			}
		}
	}

	sort.Slice(points, func(i, j int) bool { return points[i].hash < points[j].hash })
	r.points = points
}

func weightOf(weights map[string]int, node string) int {
	if w, ok := weights[node]; ok && w > 0 {
		return w
	}
	return 1
}

// GetNode returns the node owning key. It returns false only when the ring
// is empty (no nodes were configured); it never returns false on a
// non-empty ring.
func (r *HashRing) GetNode(key string) (string, bool) {
	if len(r.points) == 0 {
		return "", false
	}
	digest := md5.Sum([]byte(key)) // nolint:gosec
	h := uint32(digest[0]) | uint32(digest[1])<<8 | uint32(digest[2])<<16 | uint32(digest[3])<<24

	idx := sort.Search(len(r.points), func(i int) bool { return r.points[i].hash >= h })
	if idx == len(r.points) {
		idx = 0
	}
	return r.points[idx].node, true
}

// Len returns the number of ring points (virtual node positions), useful
// for diagnostics and tests.
func (r *HashRing) Len() int {
	return len(r.points)
}
