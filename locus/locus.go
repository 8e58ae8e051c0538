// Package locus orders gene axes by physical position on the genome. The
// gene-position table comes from an external reference; genes missing from it
// are kept and sorted after every positioned gene.
package locus

import (
	"bufio"
	"context"
	"io"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/repertoire/cohort"
)

// Table maps gene labels to start coordinates. It is read-only once built and
// may be shared between goroutines.
type Table struct {
	start map[string]int
	genes []string // sorted, for Suggest
}

// NewTable creates a Table from a gene→start mapping. The map is copied.
func NewTable(starts map[string]int) Table {
	t := Table{start: make(map[string]int, len(starts))}
	for g, s := range starts {
		t.start[g] = s
		t.genes = append(t.genes, g)
	}
	sort.Strings(t.genes)
	return t
}

// Start returns the start coordinate of the gene.
func (t Table) Start(gene string) (int, bool) {
	s, ok := t.start[gene]
	return s, ok
}

// Len returns the number of genes in the table.
func (t Table) Len() int { return len(t.start) }

// Suggest returns the known gene closest to gene by edit distance, or "" if
// the table is empty. Ties go to the lexically smallest gene.
func (t Table) Suggest(gene string) string {
	best, bestDist := "", -1
	for _, g := range t.genes {
		d := matchr.Levenshtein(gene, g)
		if bestDist < 0 || d < bestDist {
			best, bestDist = g, d
		}
	}
	return best
}

// ReadTable reads a tab-separated gene-position table. Columns are located by
// the header names gene_label and start_position; other columns are ignored.
// A gene listed twice keeps its smallest start.
func ReadTable(ctx context.Context, path string) (t Table, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return Table{}, errors.E(err, "open locus table", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var inr io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(inr, in.Name()); u != nil {
		defer u.Close() // nolint: errcheck
		inr = u
	}
	r := tsv.NewReader(bufio.NewReader(inr))
	r.HasHeaderRow = true
	r.UseHeaderNames = true
	r.Comment = '#'
	row := struct {
		GeneLabel     string `tsv:"gene_label"`
		StartPosition int    `tsv:"start_position"`
	}{}
	starts := map[string]int{}
	for {
		if err := r.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return Table{}, errors.E(errors.Invalid, err, "read locus table", path)
		}
		gene := strings.TrimSpace(row.GeneLabel)
		if s, ok := starts[gene]; !ok || row.StartPosition < s {
			starts[gene] = row.StartPosition
		}
	}
	log.Debug.Printf("locus: read %d genes from %s", len(starts), path)
	return NewTable(starts), nil
}

// OrderedRow is a frequency row with the start coordinate of its gene.
// Known is false if the gene is absent from the locus table.
type OrderedRow struct {
	cohort.FrequencyRow
	Start int
	Known bool
}

// less orders genes by known start, then name. Genes without a start come
// after all positioned genes.
func less(ga string, sa int, ka bool, gb string, sb int, kb bool) bool {
	if ka != kb {
		return ka
	}
	if ka && sa != sb {
		return sa < sb
	}
	return ga < gb
}

// OrderAxis left-joins rows with t by gene label and sorts the result along
// the gene axis: genes with a known start by ascending start, then genes
// absent from t, ties by gene name; rows of one gene keep their relative
// order. No row is dropped. rows is not modified.
func OrderAxis(rows []cohort.FrequencyRow, t Table) []OrderedRow {
	out := make([]OrderedRow, len(rows))
	unknown := map[string]bool{}
	for i, r := range rows {
		s, ok := t.Start(r.Gene)
		out[i] = OrderedRow{FrequencyRow: r, Start: s, Known: ok}
		if !ok && !unknown[r.Gene] {
			unknown[r.Gene] = true
			if sug := t.Suggest(r.Gene); sug != "" {
				log.Printf("locus: gene %s is not in the locus table (closest: %s)", r.Gene, sug)
			} else {
				log.Printf("locus: gene %s is not in the locus table", r.Gene)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		return less(a.Gene, a.Start, a.Known, b.Gene, b.Start, b.Known)
	})
	return out
}

// Axis returns the distinct genes of rows in locus order.
func Axis(rows []cohort.FrequencyRow, t Table) []string {
	var genes []string
	for _, r := range OrderAxis(rows, t) {
		if n := len(genes); n == 0 || genes[n-1] != r.Gene {
			genes = append(genes, r.Gene)
		}
	}
	return genes
}

// WriteTSV writes ordered rows with the columns of cohort.WriteFrequencyTSV
// plus start, which is NA for genes absent from the locus table.
func WriteTSV(ctx context.Context, path string, rows []OrderedRow) (err error) {
	f, err := cohort.CreateTSV(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if e := f.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	if err = f.WriteHeader("sample_id", "group_label", "axis", "gene", "count", "frequency", "start"); err != nil {
		return
	}
	for _, r := range rows {
		f.WriteString(r.SampleID)
		f.WriteString(r.Group.String())
		f.WriteString(r.Axis.String())
		f.WriteString(r.Gene)
		f.WriteInt64(int64(r.Count))
		f.WriteFloat(r.Frequency)
		if r.Known {
			f.WriteInt64(int64(r.Start))
		} else {
			f.WriteString("NA")
		}
		if err = f.EndLine(); err != nil {
			return
		}
	}
	return
}
