package airr

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
)

// AIRR rearrangement column names.
const (
	colSequenceID     = "sequence_id"
	colVCall          = "v_call"
	colJCall          = "j_call"
	colConsensusCount = "consensus_count"
	colJunctionAA     = "junction_aa"
	colProductive     = "productive"
)

// RequiredColumns lists the columns every record source must have.
var RequiredColumns = []string{colSequenceID, colVCall, colJCall, colConsensusCount, colJunctionAA}

// ReadOpts controls record parsing and filtering.
type ReadOpts struct {
	// Chain is the chain-type marker, e.g. "TRA". A record is kept iff Chain
	// occurs anywhere in the call selected by ChainField. Empty keeps every
	// record.
	Chain string
	// ChainField selects the call that Chain is matched against.
	ChainField Field
	// ProductiveOnly drops records whose productive column is explicitly
	// false. Records with an unknown productive value are kept.
	ProductiveOnly bool
}

// DefaultReadOpts keeps every record.
var DefaultReadOpts = ReadOpts{
	ChainField: VField,
}

// ReadStats counts what happened to the rows of one record source.
type ReadStats struct {
	// Rows is the number of data rows read.
	Rows int
	// ChainFiltered is the number of rows dropped because the chain marker was
	// not found in the selected call.
	ChainFiltered int
	// Unproductive is the number of rows dropped by ReadOpts.ProductiveOnly.
	Unproductive int
	// Kept is the number of records returned.
	Kept int
}

// Add adds the counts in other to s.
func (s *ReadStats) Add(other ReadStats) {
	s.Rows += other.Rows
	s.ChainFiltered += other.ChainFiltered
	s.Unproductive += other.Unproductive
	s.Kept += other.Kept
}

// String returns a one-line summary of s.
func (s ReadStats) String() string {
	return fmt.Sprintf("rows: %d, kept: %d, chain-filtered: %d, unproductive: %d",
		s.Rows, s.Kept, s.ChainFiltered, s.Unproductive)
}

// keep applies the filters in opts to a parsed record.
func (opts *ReadOpts) keep(rec *Record, stats *ReadStats) bool {
	if opts.Chain != "" && !strings.Contains(rec.Call(opts.ChainField), opts.Chain) {
		stats.ChainFiltered++
		return false
	}
	if opts.ProductiveOnly && rec.Productive == False {
		stats.Unproductive++
		return false
	}
	return true
}

// columnIndex maps the columns used by Read to their position in a row.
type columnIndex struct {
	sequenceID, vCall, jCall, consensusCount, junctionAA int
	productive                                         int // -1 if absent
}

func newColumnIndex(header []string) (columnIndex, error) {
	pos := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if _, ok := pos[name]; !ok {
			pos[name] = i
		}
	}
	var missing []string
	lookup := func(name string) int {
		i, ok := pos[name]
		if !ok {
			missing = append(missing, name)
		}
		return i
	}
	idx := columnIndex{
		sequenceID:     lookup(colSequenceID),
		vCall:          lookup(colVCall),
		jCall:          lookup(colJCall),
		consensusCount: lookup(colConsensusCount),
		junctionAA:     lookup(colJunctionAA),
		productive:     -1,
	}
	if i, ok := pos[colProductive]; ok {
		idx.productive = i
	}
	if len(missing) > 0 {
		return idx, E(MalformedInput, errors.E(errors.Invalid,
			"missing required columns:", strings.Join(missing, ",")))
	}
	return idx, nil
}

// parseBool parses an AIRR logical value. AIRR writes "T"/"F"; other tools
// write "true"/"false".
func parseBool(s string) (Bool, error) {
	if s == "" {
		return Unknown, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return Unknown, err
	}
	if b {
		return True, nil
	}
	return False, nil
}

// parseCount parses a consensus count. Empty cells are read as zero: such a
// record has no support, so any supported duplicate of the same sequence
// wins deduplication over it.
func parseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Some tools write integral counts as floats, e.g. "12.0".
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, err
		}
		n = int(f)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

// Read parses a tab-separated AIRR rearrangement table. The first row must be
// the header; columns are located by name and unknown columns are ignored.
// Rows failing the filters in opts are dropped and counted in the returned
// stats. A missing required column or an unparsable cell yields a
// MalformedInput error.
func Read(in io.Reader, opts ReadOpts) ([]Record, ReadStats, error) {
	var stats ReadStats
	r := tsv.NewReader(bufio.NewReaderSize(in, 64<<10))
	r.LazyQuotes = true
	header, err := r.Reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, stats, E(MalformedInput, errors.E(errors.Invalid, "no header row"))
		}
		return nil, stats, E(MalformedInput, err)
	}
	idx, err := newColumnIndex(header)
	if err != nil {
		return nil, stats, err
	}
	var recs []Record
	for line := 2; ; line++ {
		row, err := r.Reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, E(MalformedInput, err)
		}
		if len(row) < len(header) {
			return nil, stats, E(MalformedInput, errors.E(errors.Invalid,
				fmt.Sprintf("line %d: expect %d columns, found %d", line, len(header), len(row))))
		}
		stats.Rows++
		rec := Record{
			SequenceID: row[idx.sequenceID],
			VCall:      row[idx.vCall],
			JCall:      row[idx.jCall],
			JunctionAA: strings.TrimSpace(row[idx.junctionAA]),
		}
		rec.HasJunction = rec.JunctionAA != ""
		if rec.ConsensusCount, err = parseCount(row[idx.consensusCount]); err != nil {
			return nil, stats, E(MalformedInput, errors.E(errors.Invalid, err,
				fmt.Sprintf("line %d: %s", line, colConsensusCount)))
		}
		if idx.productive >= 0 {
			if rec.Productive, err = parseBool(strings.TrimSpace(row[idx.productive])); err != nil {
				return nil, stats, E(MalformedInput, errors.E(errors.Invalid, err,
					fmt.Sprintf("line %d: %s", line, colProductive)))
			}
		}
		if !opts.keep(&rec, &stats) {
			continue
		}
		recs = append(recs, rec)
	}
	stats.Kept = len(recs)
	return recs, stats, nil
}
