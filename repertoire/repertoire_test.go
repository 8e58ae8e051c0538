package repertoire

import (
	"math"
	"testing"

	"github.com/grailbio/repertoire/airr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func rec(id, v, j string, count int, junction string) airr.Record {
	return airr.Record{
		SequenceID:     id,
		VCall:          v,
		JCall:          j,
		ConsensusCount: count,
		JunctionAA:     junction,
		HasJunction:    junction != "",
	}
}

func TestDedupKeepsMaxCount(t *testing.T) {
	recs := []airr.Record{
		rec("1", "TRAV1*01", "TRAJ2*01", 3, "CAS"),
		rec("2", "TRAV3*01", "TRAJ2*01", 1, "CAT"),
		rec("1", "TRAV1*02", "TRAJ2*01", 7, "CAS"),
		rec("1", "TRAV1*03", "TRAJ2*01", 5, "CAS"),
	}
	got := Dedup(recs)
	require.Len(t, got, 2)
	assert.Equal(t, recs[2], got[0])
	assert.Equal(t, recs[1], got[1])
	// The input is left alone.
	assert.Equal(t, "TRAV1*01", recs[0].VCall)
}

func TestDedupTieFirstEncountered(t *testing.T) {
	recs := []airr.Record{
		rec("x", "TRAV1*01", "TRAJ2*01", 4, "CAS"),
		rec("x", "TRAV2*01", "TRAJ2*01", 4, "CAT"),
		rec("x", "TRAV3*01", "TRAJ2*01", 2, "CAW"),
	}
	got := Dedup(recs)
	require.Len(t, got, 1)
	assert.Equal(t, "TRAV1*01", got[0].VCall)

	// Reordering the tied records changes the winner, by definition.
	recs[0], recs[1] = recs[1], recs[0]
	assert.Equal(t, "TRAV2*01", Dedup(recs)[0].VCall)
}

func TestGroupByID(t *testing.T) {
	recs := []airr.Record{
		rec("b", "", "", 1, ""),
		rec("a", "", "", 1, ""),
		rec("b", "", "", 1, ""),
	}
	groups := groupByID(recs)
	assert.Equal(t, []idGroup{{id: "b", members: []int{0, 2}}, {id: "a", members: []int{1}}}, groups)
	assert.Equal(t, 2, pickBest([]airr.Record{
		rec("b", "", "", 1, ""), rec("a", "", "", 1, ""), rec("b", "", "", 2, ""),
	}, groups[0]))
}

func TestResolveIdempotent(t *testing.T) {
	recs := []airr.Record{
		rec("1", "TRAV1*01", "TRAJ2*01", 3, "CAS"),
		rec("1", "TRAV1*02", "TRAJ2*01", 7, "CAS"),
		rec("2", "TRAV3*01", "TRAJ2*01", 1, "CAT"),
		rec("2", "TRAV3*01", "TRAJ2*01", 1, "CAW"),
		rec("3", "TRAV3*01", "", 0, ""),
	}
	first, err := Resolve(recs)
	require.NoError(t, err)
	second, err := Resolve(Records(first))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	ids := map[string]bool{}
	for _, s := range first {
		assert.False(t, ids[s.SequenceID], "duplicate id %s", s.SequenceID)
		ids[s.SequenceID] = true
	}
	assert.True(t, len(first) <= len(recs))
	assert.Equal(t, "", first[2].JGene)
}

func TestResolveMalformedCall(t *testing.T) {
	_, err := Resolve([]airr.Record{rec("1", "*01", "TRAJ2*01", 3, "CAS")})
	assert.True(t, airr.IsKind(err, airr.MalformedInput), "%v", err)
}

func TestResolveBlankCall(t *testing.T) {
	seqs, err := Resolve([]airr.Record{
		rec("1", "  ", "TRAJ2*01", 3, "CAS"),
		rec("2", "TRAV1*01", "\t", 1, "CAT"),
	})
	require.NoError(t, err)
	require.Len(t, seqs, 2)
	assert.Equal(t, "", seqs[0].VGene)
	assert.Equal(t, "TRAJ2", seqs[0].JGene)
	assert.Equal(t, "", seqs[1].JGene)

	rows, err := GeneFrequencies(seqs, VAxis)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "TRAV1", rows[0].Gene)
	assert.Equal(t, 1.0, rows[0].Frequency)
}

func TestGeneFrequencies(t *testing.T) {
	seqs, err := Resolve([]airr.Record{
		rec("1", "TRAV1*01", "TRAJ2*01", 3, "CAS"),
		rec("2", "TRAV1*02", "TRAJ3*01", 3, "CAT"),
		rec("3", "TRAV2*01", "", 3, "CAT"),
		rec("4", "", "TRAJ2*01", 3, "CAT"),
	})
	require.NoError(t, err)

	v, err := GeneFrequencies(seqs, VAxis)
	require.NoError(t, err)
	assert.Equal(t, []FrequencyRow{
		{Gene: "TRAV1", Count: 2, Frequency: 2.0 / 3},
		{Gene: "TRAV2", Count: 1, Frequency: 1.0 / 3},
	}, v)

	j, err := GeneFrequencies(seqs, JAxis)
	require.NoError(t, err)
	sum := 0.0
	for _, r := range j {
		sum += r.Frequency
	}
	assert.InDelta(t, 1.0, sum, eps)
	assert.Len(t, j, 2)

	_, err = GeneFrequencies(nil, VAxis)
	assert.True(t, airr.IsKind(err, airr.EmptyRepertoire))
	_, err = GeneFrequencies(seqs[3:], VAxis)
	assert.True(t, airr.IsKind(err, airr.EmptyRepertoire))
}

func TestParseAxis(t *testing.T) {
	a, err := ParseAxis("j")
	require.NoError(t, err)
	assert.Equal(t, JAxis, a)
	a, err = ParseAxis("v_gene")
	require.NoError(t, err)
	assert.Equal(t, VAxis, a)
	_, err = ParseAxis("d")
	assert.Error(t, err)
	assert.Equal(t, "j_gene", JAxis.String())
}

func TestClonotypeCounts(t *testing.T) {
	seqs, err := Resolve([]airr.Record{
		rec("1", "TRAV1", "TRAJ1", 1, "CAT"),
		rec("2", "TRAV1", "TRAJ1", 1, "CAS"),
		rec("3", "TRAV1", "TRAJ1", 1, "CAT"),
		rec("4", "TRAV1", "TRAJ1", 1, ""),
		rec("5", "TRAV1", "TRAJ1", 1, "CAA"),
		rec("6", "TRAV1", "TRAJ1", 1, ""),
	})
	require.NoError(t, err)
	clones, stats := ClonotypeCounts(seqs)
	assert.Equal(t, []Clonotype{{"CAT", 2}, {"CAA", 1}, {"CAS", 1}}, clones)
	assert.Equal(t, 2, stats.MissingJunction)

	d, err := ComputeDiversity(clones)
	require.NoError(t, err)
	total := 0
	for _, c := range clones {
		total += c.Count
	}
	assert.Equal(t, total, d.NumCells)
	assert.Equal(t, len(clones), d.NumClones)
}

func TestDiversitySingleClone(t *testing.T) {
	d, err := ComputeDiversity([]Clonotype{{"AAA", 5}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, d.Shannon)
	assert.False(t, d.Evenness.Defined)
	assert.False(t, math.IsNaN(d.Evenness.Value))
	assert.Equal(t, "NA", d.Evenness.String())
	assert.Equal(t, Diversity{NumClones: 1, NumCells: 5}, d)
}

func TestDiversityEven(t *testing.T) {
	for k := 2; k <= 6; k++ {
		var clones []Clonotype
		for i := 0; i < k; i++ {
			clones = append(clones, Clonotype{string(rune('A' + i)), 10})
		}
		d, err := ComputeDiversity(clones)
		require.NoError(t, err)
		assert.True(t, d.Evenness.Defined)
		assert.InDelta(t, 1.0, d.Evenness.Value, eps, "k=%d", k)
		assert.InDelta(t, math.Log(float64(k)), d.Shannon, eps)
	}
}

func TestDiversityUneven(t *testing.T) {
	d, err := ComputeDiversity([]Clonotype{{"A", 3}, {"B", 1}})
	require.NoError(t, err)
	want := -(0.75*math.Log(0.75) + 0.25*math.Log(0.25))
	assert.InDelta(t, want, d.Shannon, eps)
	assert.InDelta(t, want/math.Log(2), d.Evenness.Value, eps)
	assert.True(t, d.Evenness.Value < 1)
}

func TestDiversityErrors(t *testing.T) {
	_, err := ComputeDiversity(nil)
	assert.True(t, airr.IsKind(err, airr.NoClones))
	_, err = ComputeDiversity([]Clonotype{{"A", 3}, {"B", 0}})
	assert.True(t, airr.IsKind(err, airr.InvalidCount))
	_, err = ComputeDiversity([]Clonotype{{"A", -1}})
	assert.True(t, airr.IsKind(err, airr.InvalidCount))
}

// TestEndToEnd follows three records from deduplication to diversity.
func TestEndToEnd(t *testing.T) {
	recs := []airr.Record{
		rec("1", "TRAV1*01", "TRAJ2*01", 3, "CAS"),
		rec("1", "TRAV1*02", "TRAJ2*01", 7, "CAS"),
		rec("2", "TRAV3*01", "TRAJ2*01", 1, "CAT"),
	}
	seqs, err := Resolve(recs)
	require.NoError(t, err)
	require.Len(t, seqs, 2)
	assert.Equal(t, 7, seqs[0].ConsensusCount)
	assert.Equal(t, "TRAV1*02", seqs[0].VCall)

	j, err := GeneFrequencies(seqs, JAxis)
	require.NoError(t, err)
	assert.Equal(t, []FrequencyRow{{Gene: "TRAJ2", Count: 2, Frequency: 1}}, j)

	clones, stats := ClonotypeCounts(seqs)
	assert.Equal(t, []Clonotype{{"CAS", 1}, {"CAT", 1}}, clones)
	assert.Equal(t, 0, stats.MissingJunction)

	d, err := ComputeDiversity(clones)
	require.NoError(t, err)
	assert.InDelta(t, math.Ln2, d.Shannon, eps)
	assert.InDelta(t, 1.0, d.Evenness.Value, eps)
}
