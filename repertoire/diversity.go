package repertoire

import (
	"fmt"
	"math"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/repertoire/airr"
)

// Evenness is Pielou's evenness. It is undefined for a repertoire of one
// clone, where ln(num_clones) is zero; Defined distinguishes that case from a
// genuine zero.
type Evenness struct {
	Value   float64
	Defined bool
}

// String returns the value, or "NA" if undefined.
func (e Evenness) String() string {
	if !e.Defined {
		return "NA"
	}
	return fmt.Sprintf("%g", e.Value)
}

// Diversity summarizes the clone-size distribution of one sample.
type Diversity struct {
	// Shannon is -sum(p_i ln p_i) over clone proportions p_i, in nats.
	Shannon  float64
	Evenness Evenness
	// NumClones is the number of distinct junctions.
	NumClones int
	// NumCells is the total clone size.
	NumCells int
}

// ComputeDiversity computes the Shannon index and Pielou evenness of a clone
// size distribution. It fails with a NoClones error if counts is empty and an
// InvalidCount error if any count is not positive. A single clone yields a
// Shannon index of exactly zero and an undefined evenness.
func ComputeDiversity(counts []Clonotype) (Diversity, error) {
	if len(counts) == 0 {
		return Diversity{}, airr.E(airr.NoClones, errors.E(errors.Precondition, "no clonotypes"))
	}
	d := Diversity{NumClones: len(counts)}
	for _, c := range counts {
		if c.Count <= 0 {
			return Diversity{}, airr.E(airr.InvalidCount, errors.E(errors.Integrity,
				fmt.Sprintf("clonotype %q has count %d", c.JunctionAA, c.Count)))
		}
		d.NumCells += c.Count
	}
	if d.NumClones == 1 {
		return d, nil
	}
	n := float64(d.NumCells)
	for _, c := range counts {
		p := float64(c.Count) / n
		d.Shannon -= p * math.Log(p)
	}
	d.Evenness = Evenness{Value: d.Shannon / math.Log(float64(d.NumClones)), Defined: true}
	return d, nil
}
