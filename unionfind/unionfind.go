// Package unionfind implements a disjoint-set forest carrying two weights
// per root: a block weight (set size, used only to keep trees shallow) and
// a custom weight that callers use as a semantic accumulator.
package unionfind

const root = -1

// Group is a set root together with its accumulated custom weight.
type Group struct {
	Root   int
	Weight int
}

// UnionFind is a weighted union-find over the elements 0..n-1.
// It is not safe for concurrent use.
type UnionFind struct {
	parents       []int
	blockWeights  []int
	customWeights []int
}

// New returns n singleton sets with block weight 1 and custom weight 0.
func New(n int) *UnionFind {
	uf := &UnionFind{
		parents:       make([]int, n),
		blockWeights:  make([]int, n),
		customWeights: make([]int, n),
	}
	for i := range uf.parents {
		uf.parents[i] = root
		uf.blockWeights[i] = 1
	}
	return uf
}

// Len returns the size of the universe.
func (uf *UnionFind) Len() int {
	return len(uf.parents)
}

// Find returns the root of the set containing i, compressing the path.
func (uf *UnionFind) Find(i int) int {
	r := i
	for uf.parents[r] != root {
		r = uf.parents[r]
	}
	for i != r {
		next := uf.parents[i]
		uf.parents[i] = r
		i = next
	}
	return r
}

// Merge joins the sets containing i and j. The set with the larger block
// weight keeps its root; ties keep i's root. Both weights of the surviving
// root become the sums of the two sets. Merge reports whether the sets were
// distinct.
func (uf *UnionFind) Merge(i, j int) bool {
	i = uf.Find(i)
	j = uf.Find(j)
	if i == j {
		return false
	}
	if uf.blockWeights[i] < uf.blockWeights[j] {
		i, j = j, i
	}
	uf.parents[j] = i
	uf.blockWeights[i] += uf.blockWeights[j]
	uf.customWeights[i] += uf.customWeights[j]
	return true
}

// SetWeight overwrites the custom weight stored at i. It is meant for
// seeding singletons before any merge; on a non-root element the value is
// not visible through Weight or PositiveWeightGroups.
func (uf *UnionFind) SetWeight(i, w int) {
	uf.customWeights[i] = w
}

// Weight returns the custom weight of the set containing i.
func (uf *UnionFind) Weight(i int) int {
	return uf.customWeights[uf.Find(i)]
}

// Size returns the block weight of the set containing i.
func (uf *UnionFind) Size(i int) int {
	return uf.blockWeights[uf.Find(i)]
}

// PositiveWeightGroups returns every root whose custom weight is positive,
// in ascending root order.
func (uf *UnionFind) PositiveWeightGroups() []Group {
	var groups []Group
	for i, p := range uf.parents {
		if p == root && uf.customWeights[i] > 0 {
			groups = append(groups, Group{Root: i, Weight: uf.customWeights[i]})
		}
	}
	return groups
}
