// Package sketcherrors defines the typed error kinds shared by every
// sketch package. Construction-time failures (invalid parameters, a
// misconfigured hash bias) and estimator failures (a saturated LC+BP
// table, a QS window of the wrong size) surface to the caller through
// these types. Per-element runtime anomalies such as negative counters
// are handled locally by the package that hits them and never produce
// one of these; Newton non-convergence is reported as a flag on the QS
// estimate rather than as an error.
package sketcherrors

import "github.com/agilira/go-errors"

// Kind identifies which documented failure mode produced an error, and
// doubles as its wire error code.
type Kind errors.ErrorCode

const (
	// InputExhausted: the stream ended before the expected number of
	// elements was seen. The caller may still read an estimate, but it
	// should be treated as a lower bound.
	InputExhausted Kind = "WINDOWCARD_INPUT_EXHAUSTED"
	// Saturation: a linear-counting estimator was asked to estimate
	// with every bit in the table set (head.val == m). The caller must
	// enlarge m.
	Saturation Kind = "WINDOWCARD_SATURATION"
	// NumericInstability: Newton's method did not converge within the
	// configured iteration budget. The last iterate is still returned
	// alongside this flag; it is never thrown as a hard failure.
	NumericInstability Kind = "WINDOWCARD_NUMERIC_INSTABILITY"
	// HashBiasMisconfigured: a row-bias vector was not initialized, or
	// was shorter than the number of rows requesting a value from it.
	HashBiasMisconfigured Kind = "WINDOWCARD_HASH_BIAS_MISCONFIGURED"
	// InvalidParameters: a construction parameter was out of its
	// documented domain (r outside [1,16], m/W/d/w zero, and so on).
	InvalidParameters Kind = "WINDOWCARD_INVALID_PARAMETERS"
)

func (k Kind) String() string {
	switch k {
	case InputExhausted:
		return "InputExhausted"
	case Saturation:
		return "Saturation"
	case NumericInstability:
		return "NumericInstability"
	case HashBiasMisconfigured:
		return "HashBiasMisconfigured"
	case InvalidParameters:
		return "InvalidParameters"
	default:
		return "Unknown"
	}
}

func (k Kind) code() errors.ErrorCode {
	return errors.ErrorCode(k)
}

// New constructs an error of the given kind, built on
// github.com/agilira/go-errors the way the pack's balios cache tags
// its own operation errors with an ErrorCode.
func New(kind Kind, message string) error {
	return errors.New(kind.code(), message)
}

// Wrap constructs an error of the given kind around a cause, preserving
// the cause through Unwrap. A nil cause degrades to New.
func Wrap(kind Kind, message string, cause error) error {
	if cause == nil {
		return New(kind, message)
	}
	return errors.Wrap(cause, kind.code(), message)
}

// Is reports whether err carries kind anywhere in its wrap chain, the
// sketch-specific analogue of go-errors' HasCode.
func Is(err error, kind Kind) bool {
	return errors.HasCode(err, kind.code())
}
