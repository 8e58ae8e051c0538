package airr

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"io/ioutil"
	"os"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// SamplePlaceholder is replaced by the sample ID in PathSource.Pattern.
const SamplePlaceholder = "{sample}"

// Source resolves a sample ID to its rearrangement table. Implementations
// must be safe for concurrent use; the cohort composer opens many samples at
// once. Open must return a SampleNotFound error if the sample cannot be
// located.
type Source interface {
	Open(ctx context.Context, sampleID string) (io.ReadCloser, error)
}

// PathSource locates samples by a path naming convention. Pattern may name
// any path supported by github.com/grailbio/base/file, e.g.
// "s3://bucket/{sample}/airr_rearrangement.tsv.gz". Files ending in a
// compression suffix (.gz, .bz2) are decompressed transparently.
type PathSource struct {
	Pattern string
}

// Path returns the path of the given sample.
func (s PathSource) Path(sampleID string) string {
	return strings.Replace(s.Pattern, SamplePlaceholder, sampleID, -1)
}

type fileReadCloser struct {
	ctx context.Context
	f   file.File
	r   io.Reader
	dec io.ReadCloser // nil if the file is not compressed
}

func (rc *fileReadCloser) Read(p []byte) (int, error) { return rc.r.Read(p) }

// Close closes the decompressor, if any, then the file.
func (rc *fileReadCloser) Close() error {
	var err error
	if rc.dec != nil {
		err = rc.dec.Close()
	}
	if e := rc.f.Close(rc.ctx); e != nil && err == nil {
		err = e
	}
	return err
}

func isNotExist(err error) bool {
	return errors.Is(errors.NotExist, err) || os.IsNotExist(err) || stderrors.Is(err, os.ErrNotExist)
}

// Open implements Source.
func (s PathSource) Open(ctx context.Context, sampleID string) (io.ReadCloser, error) {
	if !strings.Contains(s.Pattern, SamplePlaceholder) {
		return nil, errors.E(errors.Invalid, "path pattern has no", SamplePlaceholder, "placeholder:", s.Pattern)
	}
	path := s.Path(sampleID)
	f, err := file.Open(ctx, path)
	if err != nil {
		if isNotExist(err) {
			return nil, E(SampleNotFound, errors.E(errors.NotExist, err, path))
		}
		return nil, errors.E(err, "open", path)
	}
	rc := &fileReadCloser{ctx: ctx, f: f, r: f.Reader(ctx)}
	if u := compress.NewReaderPath(rc.r, f.Name()); u != nil {
		rc.r, rc.dec = u, u
	}
	return rc, nil
}

// MapSource serves rearrangement tables held in memory, keyed by sample ID.
type MapSource map[string][]byte

// Open implements Source.
func (s MapSource) Open(ctx context.Context, sampleID string) (io.ReadCloser, error) {
	data, ok := s[sampleID]
	if !ok {
		return nil, E(SampleNotFound, errors.E(errors.NotExist, "no such sample:", sampleID))
	}
	return ioutil.NopCloser(bytes.NewReader(data)), nil
}

// LoadSample reads and filters the records of one sample.
func LoadSample(ctx context.Context, src Source, sampleID string, opts ReadOpts) (recs []Record, stats ReadStats, err error) {
	in, err := src.Open(ctx, sampleID)
	if err != nil {
		return nil, stats, WithSample(err, sampleID)
	}
	defer func() {
		if e := in.Close(); e != nil && err == nil {
			err = WithSample(e, sampleID)
		}
	}()
	if recs, stats, err = Read(in, opts); err != nil {
		return nil, stats, WithSample(err, sampleID)
	}
	log.Debug.Printf("%s: %v", sampleID, stats)
	return recs, stats, nil
}
