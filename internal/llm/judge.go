package llm

import (
	"context"
	"fmt"
	"strings"
)

// Verdict is the outcome of a conflict arbitration call.
type Verdict string

const (
	// VerdictCompatible means both facts can coexist; the new fact is
	// inserted alongside the old one.
	VerdictCompatible Verdict = "COMPATIBLE"

	// VerdictDuplicate means the new fact restates the old one and is
	// skipped.
	VerdictDuplicate Verdict = "DUPLICATE"

	// VerdictNewWins means the facts contradict and the new one is more
	// current; the old entry is archived as superseded.
	VerdictNewWins Verdict = "CONTRADICTION_NEW_WINS"

	// VerdictOldWins means the facts contradict and the stored one stands;
	// the new fact is discarded.
	VerdictOldWins Verdict = "CONTRADICTION_OLD_WINS"

	// VerdictUnknown means the judge was unavailable or answered outside
	// the allowed set. Callers treat it as "unable to judge".
	VerdictUnknown Verdict = "UNKNOWN"
)

// arbitrationPrompt asks the model to classify the relationship between an
// existing fact and a new fact using exactly one of the four verdict tokens.
const arbitrationPrompt = `You are comparing two short factual statements stored in an assistant's memory.

EXISTING FACT:
%s

NEW FACT:
%s

Classify the relationship between the two facts. Answer with exactly one of these tokens and nothing else:

COMPATIBLE - the facts cover different details and can both be true
DUPLICATE - the new fact restates the existing fact
CONTRADICTION_NEW_WINS - the facts conflict and the new fact is the current truth
CONTRADICTION_OLD_WINS - the facts conflict and the existing fact is still the current truth

Answer:`

// Judge arbitrates ambiguous similarity matches using a text generator.
type Judge struct {
	generator TextGenerator
}

// NewJudge creates a conflict judge. A nil generator is allowed; every
// call then returns VerdictUnknown.
func NewJudge(generator TextGenerator) *Judge {
	return &Judge{generator: generator}
}

// Available reports whether a generator is configured.
func (j *Judge) Available() bool {
	return j != nil && j.generator != nil
}

// Arbitrate presents both fact texts to the judge model and returns its
// verdict. Transport failures and out-of-vocabulary answers both yield
// VerdictUnknown with a nil error; the caller decides the fallback.
func (j *Judge) Arbitrate(ctx context.Context, existing, candidate string) Verdict {
	if !j.Available() {
		return VerdictUnknown
	}

	response, err := j.generator.Complete(ctx, fmt.Sprintf(arbitrationPrompt, existing, candidate))
	if err != nil {
		return VerdictUnknown
	}
	return ParseVerdict(response)
}

// ParseVerdict extracts one of the four verdict tokens from a model
// response. The longer contradiction tokens are matched before their
// shared prefix so a verbose answer still resolves correctly.
func ParseVerdict(response string) Verdict {
	upper := strings.ToUpper(response)

	for _, v := range []Verdict{VerdictNewWins, VerdictOldWins, VerdictDuplicate, VerdictCompatible} {
		if strings.Contains(upper, string(v)) {
			return v
		}
	}
	return VerdictUnknown
}
