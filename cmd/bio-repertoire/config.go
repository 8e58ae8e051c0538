package main

import (
	"context"
	"time"

	"github.com/grailbio/repertoire/airr"
	"github.com/grailbio/repertoire/cohort"
	"github.com/grailbio/repertoire/repertoire"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// runConfig is the cohort description. It is read from a YAML, JSON or TOML
// file and then overridden by explicitly set flags.
type runConfig struct {
	// Samples lists the sample IDs. If empty, the samples of the metadata
	// table are used.
	Samples []string `mapstructure:"samples"`
	// Pattern locates a sample's rearrangement table; "{sample}" is replaced
	// by the sample ID.
	Pattern string `mapstructure:"pattern"`
	// Metadata is the path of a sample_id/group_label table.
	Metadata string `mapstructure:"metadata"`
	// Groups assigns groups inline. It is merged with Metadata.
	Groups []groupEntry `mapstructure:"groups"`
	// Chain is the chain-type marker, e.g. "TRA" or "TRB".
	Chain string `mapstructure:"chain"`
	// ChainField is "v" or "j".
	ChainField     string `mapstructure:"chain-field"`
	ProductiveOnly bool   `mapstructure:"productive-only"`
	// Axes lists gene axes, "v" and/or "j".
	Axes []string `mapstructure:"axes"`
	// Loci is the path of a gene_label/start_position table.
	Loci string `mapstructure:"loci"`
	// Out is the output path prefix.
	Out         string        `mapstructure:"out"`
	Parallelism int           `mapstructure:"parallelism"`
	ReadTimeout time.Duration `mapstructure:"read-timeout"`
	Attempts    int           `mapstructure:"attempts"`
	Pivot       bool          `mapstructure:"pivot"`
}

// groupEntry is one inline metadata row. A list is used rather than a map
// because viper lowercases map keys.
type groupEntry struct {
	Sample string `mapstructure:"sample"`
	Group  string `mapstructure:"group"`
}

var defaultConfig = runConfig{
	ChainField:  "v",
	Axes:        []string{"v", "j"},
	Out:         "repertoire",
	Parallelism: cohort.DefaultOpts.Parallelism,
	ReadTimeout: cohort.DefaultOpts.ReadTimeout,
	Attempts:    cohort.DefaultOpts.MaxReadAttempts,
}

// readConfig loads the config file at path over the defaults.
func readConfig(path string) (runConfig, error) {
	c := defaultConfig
	if path == "" {
		return c, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return c, errors.Wrapf(err, "read config %s", path)
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, errors.Wrapf(err, "decode config %s", path)
	}
	return c, nil
}

// opts converts the config into cohort options.
func (c *runConfig) opts() (cohort.Opts, error) {
	opts := cohort.DefaultOpts
	opts.Read = airr.ReadOpts{Chain: c.Chain, ProductiveOnly: c.ProductiveOnly}
	switch c.ChainField {
	case "", "v":
		opts.Read.ChainField = airr.VField
	case "j":
		opts.Read.ChainField = airr.JField
	default:
		return opts, errors.Errorf("chain-field must be v or j, got %q", c.ChainField)
	}
	opts.Axes = nil
	for _, a := range c.Axes {
		axis, err := repertoire.ParseAxis(a)
		if err != nil {
			return opts, errors.Wrap(err, "axes")
		}
		opts.Axes = append(opts.Axes, axis)
	}
	opts.Parallelism = c.Parallelism
	opts.ReadTimeout = c.ReadTimeout
	opts.MaxReadAttempts = c.Attempts
	return opts, nil
}

// metadata reads c.Metadata, if set, and adds the inline groups.
func (c *runConfig) metadata(ctx context.Context) (cohort.Metadata, error) {
	var rows []cohort.SampleInfo
	if c.Metadata != "" {
		md, err := cohort.ReadMetadata(ctx, c.Metadata)
		if err != nil {
			return cohort.Metadata{}, err
		}
		for _, id := range md.Samples() {
			rows = append(rows, cohort.SampleInfo{SampleID: id, Group: md.Group(id).Label})
		}
	}
	for _, g := range c.Groups {
		rows = append(rows, cohort.SampleInfo{SampleID: g.Sample, Group: g.Group})
	}
	return cohort.NewMetadata(rows)
}
