package cohort

import (
	"fmt"
	"sort"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/repertoire/repertoire"
)

// FrequencyRow is one gene-usage row of a cohort table.
type FrequencyRow struct {
	SampleID string
	Group    Group
	Axis     repertoire.Axis
	repertoire.FrequencyRow
}

// FrequencyTable is the concatenation of the per-sample gene-usage tables of
// a cohort, in sample order. Within a sample, rows are ordered by axis, then
// gene.
type FrequencyTable []FrequencyRow

// Axis returns the rows on the given axis.
func (t FrequencyTable) Axis(axis repertoire.Axis) FrequencyTable {
	var out FrequencyTable
	for _, r := range t {
		if r.Axis == axis {
			out = append(out, r)
		}
	}
	return out
}

// Sample returns the rows of one sample.
func (t FrequencyTable) Sample(sampleID string) FrequencyTable {
	var out FrequencyTable
	for _, r := range t {
		if r.SampleID == sampleID {
			out = append(out, r)
		}
	}
	return out
}

// Genes returns the sorted distinct genes on the given axis.
func (t FrequencyTable) Genes(axis repertoire.Axis) []string {
	seen := map[string]bool{}
	var genes []string
	for _, r := range t {
		if r.Axis == axis && !seen[r.Gene] {
			seen[r.Gene] = true
			genes = append(genes, r.Gene)
		}
	}
	sort.Strings(genes)
	return genes
}

// Pivot returns the rows on axis over a cohort-wide gene set: every sample in
// t gets a row for every gene observed on axis in any sample, with zero count
// and frequency where the sample lacks the gene.
func (t FrequencyTable) Pivot(axis repertoire.Axis) FrequencyTable {
	rows := t.Axis(axis)
	genes := rows.Genes(axis)

	type sampleRows struct {
		id    string
		group Group
		rows  map[string]repertoire.FrequencyRow
	}
	var samples []*sampleRows
	index := map[string]*sampleRows{}
	for _, r := range rows {
		s, ok := index[r.SampleID]
		if !ok {
			s = &sampleRows{id: r.SampleID, group: r.Group, rows: map[string]repertoire.FrequencyRow{}}
			index[r.SampleID] = s
			samples = append(samples, s)
		}
		s.rows[r.Gene] = r.FrequencyRow
	}
	out := make(FrequencyTable, 0, len(samples)*len(genes))
	for _, s := range samples {
		for _, g := range genes {
			fr, ok := s.rows[g]
			if !ok {
				fr = repertoire.FrequencyRow{Gene: g}
			}
			out = append(out, FrequencyRow{SampleID: s.id, Group: s.group, Axis: axis, FrequencyRow: fr})
		}
	}
	return out
}

// Digest returns a fingerprint of the table contents. Two runs over the same
// inputs produce the same digest regardless of parallelism.
func (t FrequencyTable) Digest() uint64 {
	h := seahash.New()
	for _, r := range t {
		fmt.Fprintf(h, "%s\t%v\t%v\t%s\t%d\t%v\n", r.SampleID, r.Group, r.Axis, r.Gene, r.Count, r.Frequency)
	}
	return h.Sum64()
}

// DiversityRow is the diversity summary of one sample.
type DiversityRow struct {
	SampleID string
	Group    Group
	repertoire.Diversity
	// MissingJunction is the number of sequences left out of the clonotype
	// table for lack of a junction.
	MissingJunction int
}

// DiversityTable holds one row per successful sample, in sample order.
type DiversityTable []DiversityRow

// Digest returns a fingerprint of the table contents.
func (t DiversityTable) Digest() uint64 {
	h := seahash.New()
	for _, r := range t {
		fmt.Fprintf(h, "%s\t%v\t%v\t%v\t%d\t%d\t%d\n", r.SampleID, r.Group, r.Shannon, r.Evenness,
			r.NumClones, r.NumCells, r.MissingJunction)
	}
	return h.Sum64()
}
