package cohort

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/klauspost/compress/gzip"
)

// naString marks a null cell in text output.
const naString = "NA"

// TSVFile is a tab-separated output file. Paths ending in ".gz" are
// gzip-compressed.
type TSVFile struct {
	*tsv.Writer
	out file.File
	gz  *gzip.Writer
}

// CreateTSV creates a TSV file at path, which may name any
// github.com/grailbio/base/file location.
func CreateTSV(ctx context.Context, path string) (*TSVFile, error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	f := &TSVFile{out: out}
	var w io.Writer = out.Writer(ctx)
	if strings.HasSuffix(path, ".gz") {
		f.gz = gzip.NewWriter(w)
		w = f.gz
	}
	f.Writer = tsv.NewWriter(w)
	return f, nil
}

// WriteHeader writes one line of column names.
func (f *TSVFile) WriteHeader(cols ...string) error {
	for _, c := range cols {
		f.WriteString(c)
	}
	return f.EndLine()
}

// WriteFloat writes a float in the shortest representation that round-trips.
func (f *TSVFile) WriteFloat(v float64) {
	f.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
}

// Close flushes and closes the file. It must be called exactly once.
func (f *TSVFile) Close(ctx context.Context) (err error) {
	defer file.CloseAndReport(ctx, f.out, &err)
	if err = f.Flush(); err != nil {
		return
	}
	if f.gz != nil {
		err = f.gz.Close()
	}
	return
}

// WriteFrequencyTSV writes t with columns
// sample_id, group_label, axis, gene, count, frequency.
func WriteFrequencyTSV(ctx context.Context, path string, t FrequencyTable) (err error) {
	f, err := CreateTSV(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if e := f.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	if err = f.WriteHeader("sample_id", "group_label", "axis", "gene", "count", "frequency"); err != nil {
		return
	}
	for _, r := range t {
		f.WriteString(r.SampleID)
		f.WriteString(r.Group.String())
		f.WriteString(r.Axis.String())
		f.WriteString(r.Gene)
		f.WriteInt64(int64(r.Count))
		f.WriteFloat(r.Frequency)
		if err = f.EndLine(); err != nil {
			return
		}
	}
	return
}

// WriteDiversityTSV writes t with columns sample_id, group_label, shannon,
// evenness, num_clones, num_cells, missing_junction. An undefined evenness is
// written as NA.
func WriteDiversityTSV(ctx context.Context, path string, t DiversityTable) (err error) {
	f, err := CreateTSV(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if e := f.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	if err = f.WriteHeader("sample_id", "group_label", "shannon", "evenness",
		"num_clones", "num_cells", "missing_junction"); err != nil {
		return
	}
	for _, r := range t {
		f.WriteString(r.SampleID)
		f.WriteString(r.Group.String())
		f.WriteFloat(r.Shannon)
		if r.Evenness.Defined {
			f.WriteFloat(r.Evenness.Value)
		} else {
			f.WriteString(naString)
		}
		f.WriteInt64(int64(r.NumClones))
		f.WriteInt64(int64(r.NumCells))
		f.WriteInt64(int64(r.MissingJunction))
		if err = f.EndLine(); err != nil {
			return
		}
	}
	return
}

// WriteFailuresTSV writes one line per failed sample with columns sample_id,
// kind, error.
func WriteFailuresTSV(ctx context.Context, path string, failures []SampleFailure) (err error) {
	f, err := CreateTSV(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if e := f.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	if err = f.WriteHeader("sample_id", "kind", "error"); err != nil {
		return
	}
	for _, fl := range failures {
		f.WriteString(fl.SampleID)
		f.WriteString(fl.Kind().String())
		f.WriteString(strings.NewReplacer("\t", " ", "\n", " ").Replace(fl.Err.Error()))
		if err = f.EndLine(); err != nil {
			return
		}
	}
	return
}
