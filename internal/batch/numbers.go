package batch

import (
	"math/rand/v2"
	"strings"

	"github.com/hlrcheck/hlr-batch/internal/hlr"
	"github.com/hlrcheck/hlr-batch/pkg/pipeline/schema"
)

// SuffixPolicy decides how a prefix is padded out to a full number.
type SuffixPolicy string

const (
	// SuffixRandom appends random digits so the target never sees the same
	// number twice. Output is not reproducible across runs.
	SuffixRandom SuffixPolicy = "random"
	// SuffixFixed appends FixedSuffix. Output is reproducible.
	SuffixFixed SuffixPolicy = "fixed"
)

const (
	SuffixDigits = 7
	FixedSuffix  = "0000000"
)

func NormalizeSuffixPolicy(raw string) SuffixPolicy {
	if strings.EqualFold(strings.TrimSpace(raw), string(SuffixFixed)) {
		return SuffixFixed
	}
	return SuffixRandom
}

// Numbers turns input rows into the value typed into the form.
type Numbers struct {
	mode   schema.InputMode
	suffix SuffixPolicy
	rng    *rand.Rand
}

// NewNumbers builds a Numbers. A nil src seeds from the runtime generator.
func NewNumbers(mode schema.InputMode, suffix SuffixPolicy, src rand.Source) *Numbers {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Numbers{mode: mode, suffix: suffix, rng: rand.New(src)}
}

// Mode returns the input mode numbers are synthesized for.
func (n *Numbers) Mode() schema.InputMode {
	return n.mode
}

// LookupValue returns the number to submit for row, or false when the row has
// no usable identifier.
//
// In msisdn mode the identifier is used verbatim. Otherwise it is a prefix:
// leading zeros are dropped and the value becomes "0" + prefix + suffix.
func (n *Numbers) LookupValue(row hlr.InputRow) (string, bool) {
	id := strings.TrimSpace(row.Identifier)
	if n.mode == schema.InputModeMSISDN {
		return id, id != ""
	}
	prefix := strings.TrimLeft(id, "0")
	if prefix == "" {
		return "", false
	}
	return "0" + prefix + n.nextSuffix(), true
}

func (n *Numbers) nextSuffix() string {
	if n.suffix == SuffixFixed {
		return FixedSuffix
	}
	var b strings.Builder
	b.Grow(SuffixDigits)
	for i := 0; i < SuffixDigits; i++ {
		b.WriteByte(byte('0' + n.rng.IntN(10)))
	}
	return b.String()
}
