package rollup

import "github.com/cockroachdb/errors"

var (
	// ErrStoreExecution marks failures reported by the warehouse: connectivity,
	// malformed predicates or statement timeouts. They are never retried.
	ErrStoreExecution = errors.New("store execution failed")
	// ErrDecode marks result tuples that do not match the compiled query.
	ErrDecode = errors.New("rollup decode failed")
)

func storeError(err error, spec string) error {
	return errors.Mark(errors.Wrapf(err, "rollup %s", spec), ErrStoreExecution)
}

func decodeError(err error, spec string) error {
	return errors.Mark(errors.Wrapf(err, "rollup %s", spec), ErrDecode)
}
