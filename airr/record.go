package airr

// Bool is a tri-state boolean for optional AIRR logical columns.
type Bool int8

const (
	// Unknown means the column was absent or the cell was empty.
	Unknown Bool = iota
	True
	False
)

// Record is one row of an AIRR rearrangement table, restricted to the
// columns used for repertoire summarization. Records are values and are never
// modified after Read returns them.
type Record struct {
	// SequenceID identifies the reconstructed sequence. It is not unique
	// within a sample: assemblers emit one row per contig and the same
	// sequence may be reported several times.
	SequenceID string
	// VCall and JCall are the raw gene+allele calls, e.g. "TRAV1*01".
	VCall string
	JCall string
	// ConsensusCount is the number of reads supporting the record.
	ConsensusCount int
	// JunctionAA is the CDR3 amino-acid sequence. It is meaningful only if
	// HasJunction is true.
	JunctionAA  string
	HasJunction bool
	Productive  Bool
}

// Call returns the raw call for the field.
func (r *Record) Call(f Field) string {
	if f == JField {
		return r.JCall
	}
	return r.VCall
}

// Field selects one of the segment-call columns.
type Field int

const (
	// VField selects v_call.
	VField Field = iota
	// JField selects j_call.
	JField
)

// String returns the AIRR column name of the field.
func (f Field) String() string {
	if f == JField {
		return colJCall
	}
	return colVCall
}
