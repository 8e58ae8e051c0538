package repertoire

import (
	"sort"
)

// Clonotype is the number of sequences of one sample sharing a junction.
type Clonotype struct {
	JunctionAA string
	Count      int
}

// ClonotypeStats reports what ClonotypeCounts left out.
type ClonotypeStats struct {
	// MissingJunction is the number of sequences excluded because their
	// junction_aa was absent or empty.
	MissingJunction int
}

// ClonotypeCounts groups the sequences of one sample by exact junction_aa and
// returns one Clonotype per distinct junction, largest first, with ties in
// lexical junction order. Sequences without a junction are not a clone; they
// are excluded and counted in the returned stats.
func ClonotypeCounts(seqs []Sequence) ([]Clonotype, ClonotypeStats) {
	var stats ClonotypeStats
	counts := map[string]int{}
	for i := range seqs {
		s := &seqs[i]
		if !s.HasJunction || s.JunctionAA == "" {
			stats.MissingJunction++
			continue
		}
		counts[s.JunctionAA]++
	}
	clones := make([]Clonotype, 0, len(counts))
	for j, n := range counts {
		clones = append(clones, Clonotype{JunctionAA: j, Count: n})
	}
	sort.Slice(clones, func(i, j int) bool {
		if clones[i].Count != clones[j].Count {
			return clones[i].Count > clones[j].Count
		}
		return clones[i].JunctionAA < clones[j].JunctionAA
	})
	return clones, stats
}
