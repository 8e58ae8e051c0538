package repertoire

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/repertoire/airr"
)

// Axis selects the gene segment a frequency table is computed over.
type Axis int

const (
	// VAxis selects the V gene.
	VAxis Axis = iota
	// JAxis selects the J gene.
	JAxis
)

// Axes lists all axes.
var Axes = []Axis{VAxis, JAxis}

// String returns the column name of the axis.
func (a Axis) String() string {
	switch a {
	case VAxis:
		return "v_gene"
	case JAxis:
		return "j_gene"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// ParseAxis parses "v", "j", "v_gene" or "j_gene".
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "v", "V", "v_gene":
		return VAxis, nil
	case "j", "J", "j_gene":
		return JAxis, nil
	}
	return VAxis, errors.E(errors.Invalid, "unknown gene axis:", s)
}

// FrequencyRow is the usage of one gene within one sample.
type FrequencyRow struct {
	Gene      string
	Count     int
	Frequency float64
}

// GeneFrequencies counts the sequences of one sample by the gene on axis and
// returns the usage frequency of every gene observed, sorted by gene name.
// Sequences with no gene label on the axis count neither toward a gene nor
// toward the total. It fails with an EmptyRepertoire error if no sequence has
// a label.
func GeneFrequencies(seqs []Sequence, axis Axis) ([]FrequencyRow, error) {
	counts := map[string]int{}
	total := 0
	for i := range seqs {
		g := seqs[i].Gene(axis)
		if g == "" {
			continue
		}
		counts[g]++
		total++
	}
	if total == 0 {
		return nil, airr.E(airr.EmptyRepertoire, errors.E(errors.Precondition,
			fmt.Sprintf("no %s labels among %d sequences", axis, len(seqs))))
	}
	rows := make([]FrequencyRow, 0, len(counts))
	for g, n := range counts {
		rows = append(rows, FrequencyRow{
			Gene:      g,
			Count:     n,
			Frequency: float64(n) / float64(total),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Gene < rows[j].Gene })
	return rows, nil
}
