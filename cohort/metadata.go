package cohort

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// Group is an experimental group label that may be null, as for a sample
// missing from the metadata.
type Group struct {
	Label string
	Valid bool
}

// String returns the label, or "NA" for a null group.
func (g Group) String() string {
	if !g.Valid {
		return naString
	}
	return g.Label
}

// SampleInfo is one metadata row.
type SampleInfo struct {
	SampleID string
	Group    string
}

// Metadata maps sample IDs to experimental groups. It is read-only once
// built, and safe to share between goroutines.
type Metadata struct {
	groups  map[string]string
	samples []string
}

// NewMetadata builds Metadata from rows. Sample IDs must be unique and
// non-empty.
func NewMetadata(rows []SampleInfo) (Metadata, error) {
	m := Metadata{groups: make(map[string]string, len(rows))}
	for _, row := range rows {
		if row.SampleID == "" {
			return Metadata{}, errors.E(errors.Invalid, "metadata: empty sample_id")
		}
		if _, ok := m.groups[row.SampleID]; ok {
			return Metadata{}, errors.E(errors.Invalid, "metadata: duplicate sample_id", row.SampleID)
		}
		m.groups[row.SampleID] = row.Group
		m.samples = append(m.samples, row.SampleID)
	}
	return m, nil
}

// Group returns the group of the sample. The group is null if the sample has
// no metadata row or an empty label.
func (m Metadata) Group(sampleID string) Group {
	label, ok := m.groups[sampleID]
	return Group{Label: label, Valid: ok && label != ""}
}

// Len returns the number of samples.
func (m Metadata) Len() int { return len(m.samples) }

// Samples returns the sample IDs in the order they were added.
func (m Metadata) Samples() []string {
	return append([]string(nil), m.samples...)
}

// ReadMetadata reads a tab-separated metadata table. Columns are located by
// the header names sample_id and group_label; other columns are ignored.
func ReadMetadata(ctx context.Context, path string) (m Metadata, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return Metadata{}, errors.E(err, "open metadata", path)
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
		SampleID   string `tsv:"sample_id"`
		GroupLabel string `tsv:"group_label"`
	}{}
	var rows []SampleInfo
	for {
		if err := r.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return Metadata{}, errors.E(errors.Invalid, err, "read metadata", path)
		}
		rows = append(rows, SampleInfo{
			SampleID: strings.TrimSpace(row.SampleID),
			Group:    strings.TrimSpace(row.GroupLabel),
		})
	}
	return NewMetadata(rows)
}
