package repertoire

import (
	"strings"

	"github.com/grailbio/repertoire/airr"
)

// Sequence is a record that survived deduplication, with allele-stripped
// gene labels. An empty VGene or JGene means the call was absent.
type Sequence struct {
	airr.Record
	VGene string
	JGene string
}

// Gene returns the gene label on the given axis.
func (s *Sequence) Gene(axis Axis) string {
	if axis == JAxis {
		return s.JGene
	}
	return s.VGene
}

// idGroup is the set of records sharing one sequence ID, as indices into the
// input in input order.
type idGroup struct {
	id      string
	members []int
}

// groupByID partitions records by SequenceID. Groups are returned in the order
// their ID first appears, and members keep input order.
func groupByID(recs []airr.Record) []idGroup {
	pos := make(map[string]int, len(recs))
	var groups []idGroup
	for i := range recs {
		id := recs[i].SequenceID
		g, ok := pos[id]
		if !ok {
			g = len(groups)
			pos[id] = g
			groups = append(groups, idGroup{id: id})
		}
		groups[g].members = append(groups[g].members, i)
	}
	return groups
}

// pickBest returns the member with the largest ConsensusCount. On a tie the
// member that comes first in input order wins.
//
// REQUIRES: len(g.members) > 0.
func pickBest(recs []airr.Record, g idGroup) int {
	best := g.members[0]
	for _, i := range g.members[1:] {
		if recs[i].ConsensusCount > recs[best].ConsensusCount {
			best = i
		}
	}
	return best
}

// Dedup collapses records sharing a SequenceID into the single record with
// the largest ConsensusCount, the first one encountered on ties. The result
// has one record per distinct ID, ordered by first appearance. recs is not
// modified.
func Dedup(recs []airr.Record) []airr.Record {
	groups := groupByID(recs)
	out := make([]airr.Record, len(groups))
	for i, g := range groups {
		out[i] = recs[pickBest(recs, g)]
	}
	return out
}

// normalize derives the gene label of a call. Empty or blank calls map to the
// empty (null) label; other calls must parse.
func normalize(call string) (string, error) {
	if strings.TrimSpace(call) == "" {
		return "", nil
	}
	gc, err := airr.ParseCall(call)
	if err != nil {
		return "", err
	}
	return gc.Gene, nil
}

// Resolve deduplicates the records of one sample (see Dedup) and attaches
// allele-stripped gene labels to the survivors. It fails with a
// MalformedInput error if a surviving record carries a malformed call.
func Resolve(recs []airr.Record) ([]Sequence, error) {
	best := Dedup(recs)
	out := make([]Sequence, len(best))
	for i, rec := range best {
		s := Sequence{Record: rec}
		var err error
		if s.VGene, err = normalize(rec.VCall); err != nil {
			return nil, err
		}
		if s.JGene, err = normalize(rec.JCall); err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// Records returns the underlying records of seqs.
func Records(seqs []Sequence) []airr.Record {
	out := make([]airr.Record, len(seqs))
	for i := range seqs {
		out[i] = seqs[i].Record
	}
	return out
}
