package airr

import (
	"strings"

	"github.com/grailbio/base/errors"
)

// AlleleSeparator separates the gene name from the allele number in a call,
// as in "TRAV1*01".
const AlleleSeparator = '*'

// GeneCall is a segment call split into its gene and allele parts.
type GeneCall struct {
	Gene   string
	Allele string
}

// String reassembles the call.
func (c GeneCall) String() string {
	if c.Allele == "" {
		return c.Gene
	}
	return c.Gene + string(AlleleSeparator) + c.Allele
}

// firstCall returns the first call of a comma-separated multi-call field.
// "TRAV1*01,TRAV1*02" yields "TRAV1*01".
func firstCall(raw string) string {
	if i := strings.IndexByte(raw, ','); i >= 0 {
		return raw[:i]
	}
	return raw
}

// ParseCall splits a raw segment call into gene and allele. Only the first
// call of a multi-call field is considered. A call without a separator is a
// gene-level call and is returned with an empty allele.
//
// The following fail with a MalformedInput error: an empty call, a call that
// starts with the separator (no gene), and a call that ends with it (no
// allele).
func ParseCall(raw string) (GeneCall, error) {
	call := strings.TrimSpace(firstCall(raw))
	if call == "" {
		return GeneCall{}, E(MalformedInput, errors.E(errors.Invalid, "empty gene call"))
	}
	i := strings.IndexByte(call, AlleleSeparator)
	if i < 0 {
		return GeneCall{Gene: call}, nil
	}
	if i == 0 {
		return GeneCall{}, E(MalformedInput, errors.E(errors.Invalid, "gene call has no gene name:", raw))
	}
	if i == len(call)-1 {
		return GeneCall{}, E(MalformedInput, errors.E(errors.Invalid, "gene call has an empty allele:", raw))
	}
	return GeneCall{Gene: call[:i], Allele: call[i+1:]}, nil
}

// Gene strips the allele from a raw call: everything from the first separator
// onward is dropped. It never fails; a call without a separator is returned
// unchanged.
func Gene(raw string) string {
	if i := strings.IndexByte(raw, AlleleSeparator); i >= 0 {
		return raw[:i]
	}
	return raw
}
