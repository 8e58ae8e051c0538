// Package cohort summarizes the TCR repertoires of a cohort of samples. Each
// sample is loaded, deduplicated and aggregated independently; the per-sample
// tables are then concatenated and joined with the sample metadata.
package cohort

import (
	"context"
	"runtime"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/retry"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/repertoire/airr"
	"github.com/grailbio/repertoire/repertoire"
)

// Opts controls a cohort run.
type Opts struct {
	// Read is passed to airr.LoadSample for every sample.
	Read airr.ReadOpts
	// Axes lists the gene axes to compute frequencies over.
	Axes []repertoire.Axis
	// Diversity enables the clonotype and diversity stage.
	Diversity bool
	// Parallelism caps the number of samples processed at once. Zero means
	// runtime.NumCPU().
	Parallelism int
	// ReadTimeout bounds one attempt at reading a sample. Zero means no
	// timeout.
	ReadTimeout time.Duration
	// MaxReadAttempts is the number of times a sample read is attempted when
	// it fails with an error outside the pipeline taxonomy (e.g. a network
	// fault or a timeout). Missing and malformed samples are never retried.
	MaxReadAttempts int
	// RetryInitial and RetryMax bound the exponential backoff between
	// attempts.
	RetryInitial time.Duration
	RetryMax     time.Duration
}

// DefaultOpts computes V and J frequencies and diversity for every record.
var DefaultOpts = Opts{
	Read:            airr.DefaultReadOpts,
	Axes:            []repertoire.Axis{repertoire.VAxis, repertoire.JAxis},
	Diversity:       true,
	Parallelism:     0,
	ReadTimeout:     0,
	MaxReadAttempts: 3,
	RetryInitial:    time.Second,
	RetryMax:        30 * time.Second,
}

// SampleFailure records why one sample is absent from the cohort tables.
type SampleFailure struct {
	SampleID string
	Err      error
}

// Kind returns the classification of the failure.
func (f SampleFailure) Kind() airr.Kind { return airr.KindOf(f.Err) }

// SampleStats describes the processing of one successful sample.
type SampleStats struct {
	SampleID string
	Read     airr.ReadStats
	// Resolved is the number of distinct sequence IDs after deduplication.
	Resolved int
	// MissingJunction is the number of resolved sequences without a junction.
	MissingJunction int
}

// Result is the outcome of a cohort run. Tables contain only successful
// samples; every other requested sample has exactly one entry in Failures.
type Result struct {
	Frequencies FrequencyTable
	Diversity   DiversityTable
	Failures    []SampleFailure
	Stats       []SampleStats
}

// sampleResult is the output of one sample's pipeline. Each worker owns one.
type sampleResult struct {
	freqs     FrequencyTable
	diversity *DiversityRow
	stats     SampleStats
	err       error
}

// Run summarizes every sample in sampleIDs. Samples are processed
// concurrently and independently: a sample that fails is reported in
// Result.Failures and does not affect the others. Once ctx is done no new
// sample is started; samples not started are reported as failures. Rows are
// joined with md by sample ID; samples without metadata keep a null group.
//
// Run returns an error only if the arguments are invalid.
func Run(ctx context.Context, sampleIDs []string, src airr.Source, md Metadata, opts Opts) (*Result, error) {
	seen := make(map[string]bool, len(sampleIDs))
	for _, id := range sampleIDs {
		if seen[id] {
			return nil, errors.E(errors.Invalid, "duplicate sample", id)
		}
		seen[id] = true
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	results := make([]sampleResult, len(sampleIDs))
	log.Printf("cohort: processing %d samples (parallelism %d)", len(sampleIDs), parallelism)
	err := traverse.Limit(parallelism).Each(len(sampleIDs), func(i int) error {
		id := sampleIDs[i]
		if err := ctx.Err(); err != nil {
			results[i].err = airr.WithSample(errors.E(errors.Canceled, err, "not started"), id)
			return nil
		}
		results[i] = processSample(ctx, id, src, opts)
		return nil
	})
	if err != nil {
		// The callback never fails; this is a panic recovered by traverse.
		return nil, err
	}
	return merge(sampleIDs, results, md), nil
}

// merge concatenates per-sample results in sample order and attaches groups.
func merge(sampleIDs []string, results []sampleResult, md Metadata) *Result {
	res := &Result{}
	for i, id := range sampleIDs {
		r := &results[i]
		if r.err != nil {
			if airr.IsKind(r.err, airr.InvalidCount) {
				log.Error.Printf("cohort: %s: data integrity violation, check the upstream assembly: %v", id, r.err)
			} else {
				log.Error.Printf("cohort: %s failed: %v", id, r.err)
			}
			res.Failures = append(res.Failures, SampleFailure{SampleID: id, Err: r.err})
			continue
		}
		group := md.Group(id)
		if !group.Valid {
			log.Printf("cohort: %s has no group in the metadata", id)
		}
		for _, fr := range r.freqs {
			fr.Group = group
			res.Frequencies = append(res.Frequencies, fr)
		}
		if r.diversity != nil {
			d := *r.diversity
			d.Group = group
			res.Diversity = append(res.Diversity, d)
		}
		res.Stats = append(res.Stats, r.stats)
	}
	log.Printf("cohort: %d samples summarized, %d failed", len(res.Stats), len(res.Failures))
	return res
}

// processSample runs the whole pipeline for one sample. A sample either
// contributes all of its tables or fails as a whole.
func processSample(ctx context.Context, id string, src airr.Source, opts Opts) sampleResult {
	var r sampleResult
	recs, readStats, err := load(ctx, id, src, opts)
	if err != nil {
		r.err = err
		return r
	}
	r.stats = SampleStats{SampleID: id, Read: readStats}
	seqs, err := repertoire.Resolve(recs)
	if err != nil {
		r.err = airr.WithSample(err, id)
		return r
	}
	r.stats.Resolved = len(seqs)
	for _, axis := range opts.Axes {
		rows, err := repertoire.GeneFrequencies(seqs, axis)
		if err != nil {
			r.err = airr.WithSample(err, id)
			return r
		}
		for _, row := range rows {
			r.freqs = append(r.freqs, FrequencyRow{SampleID: id, Axis: axis, FrequencyRow: row})
		}
	}
	if opts.Diversity {
		clones, cstats := repertoire.ClonotypeCounts(seqs)
		r.stats.MissingJunction = cstats.MissingJunction
		if cstats.MissingJunction > 0 {
			log.Printf("%s: %d records excluded for missing junction", id, cstats.MissingJunction)
		}
		d, err := repertoire.ComputeDiversity(clones)
		if err != nil {
			r.err = airr.WithSample(err, id)
			return r
		}
		r.diversity = &DiversityRow{SampleID: id, Diversity: d, MissingJunction: cstats.MissingJunction}
	}
	log.Printf("%s: %v, %d sequences after deduplication", id, readStats, r.stats.Resolved)
	return r
}

// load reads one sample, retrying failures outside the pipeline taxonomy.
func load(ctx context.Context, id string, src airr.Source, opts Opts) ([]airr.Record, airr.ReadStats, error) {
	attempts := opts.MaxReadAttempts
	if attempts < 1 {
		attempts = 1
	}
	policy := retry.Backoff(opts.RetryInitial, opts.RetryMax, 2)
	for attempt := 0; ; attempt++ {
		recs, stats, err := loadOnce(ctx, id, src, opts)
		if err == nil || airr.KindOf(err) != airr.Other || attempt+1 >= attempts {
			return recs, stats, err
		}
		log.Printf("%s: read attempt %d/%d failed: %v", id, attempt+1, attempts, err)
		if werr := retry.Wait(ctx, policy, attempt); werr != nil {
			return nil, stats, err
		}
	}
}

type loaded struct {
	recs  []airr.Record
	stats airr.ReadStats
	err   error
}

// loadOnce makes one read attempt, abandoning it after opts.ReadTimeout. An
// abandoned read keeps running in the background until the source returns,
// but the cohort no longer waits on it.
func loadOnce(ctx context.Context, id string, src airr.Source, opts Opts) ([]airr.Record, airr.ReadStats, error) {
	if opts.ReadTimeout <= 0 {
		return airr.LoadSample(ctx, src, id, opts.Read)
	}
	ctx, cancel := context.WithTimeout(ctx, opts.ReadTimeout)
	defer cancel()
	ch := make(chan loaded, 1)
	go func() {
		var l loaded
		l.recs, l.stats, l.err = airr.LoadSample(ctx, src, id, opts.Read)
		ch <- l
	}()
	select {
	case l := <-ch:
		return l.recs, l.stats, l.err
	case <-ctx.Done():
		kind := errors.Timeout
		if ctx.Err() == context.Canceled {
			kind = errors.Canceled
		}
		return nil, airr.ReadStats{}, airr.WithSample(errors.E(kind, ctx.Err(), "read", id), id)
	}
}
