package chain

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Errors returned by this package carry one of three kinds:
//
//   errors.Invalid       bad or incomplete configuration
//   errors.Precondition  sample files disagree about their feature ids
//   errors.Integrity     a step table or count lookup is missing an entry
//                        that earlier stages guarantee exists

func configErrorf(format string, args ...interface{}) error {
	return errors.E(errors.Invalid, fmt.Sprintf(format, args...))
}

func consistencyErrorf(format string, args ...interface{}) error {
	return errors.E(errors.Precondition, fmt.Sprintf(format, args...))
}

func provenanceDefectf(format string, args ...interface{}) error {
	return errors.E(errors.Integrity, fmt.Sprintf(format, args...))
}

// IsConfigError tells whether err reports a configuration problem.
func IsConfigError(err error) bool { return errors.Is(errors.Invalid, err) }

// IsConsistencyError tells whether err reports sample files whose feature
// ids disagree.
func IsConsistencyError(err error) bool { return errors.Is(errors.Precondition, err) }

// IsProvenanceDefect tells whether err reports a missing step-table or
// count entry during reconstruction.
func IsProvenanceDefect(err error) bool { return errors.Is(errors.Integrity, err) }
