package runtime

import (
	"errors"
	"strings"
)

// outOfMemoryError marks a generation failure caused by memory exhaustion.
// The batch submission loop retries these with a smaller batch; everything
// else propagates.
type outOfMemoryError struct{ msg string }

func (e outOfMemoryError) Error() string { return e.msg }

// ErrOutOfMemory constructs an out-of-memory error.
func ErrOutOfMemory(msg string) error { return outOfMemoryError{msg: msg} }

// IsOutOfMemory reports whether err indicates memory exhaustion in the
// backend. Besides the typed error, it recognizes the allocation-failure
// strings llama.cpp emits from the C side.
func IsOutOfMemory(err error) bool {
	if err == nil {
		return false
	}
	var oom outOfMemoryError
	if errors.As(err, &oom) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{
		"out of memory",
		"failed to allocate",
		"cuda error 2",     // cudaErrorMemoryAllocation
		"kv cache slots",   // llama.cpp batch does not fit the KV cache
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

// notBuiltError signals that the binary was compiled without a real backend.
type notBuiltError struct{ msg string }

func (e notBuiltError) Error() string { return e.msg }

// ErrNotBuilt constructs a notBuiltError.
func ErrNotBuilt(msg string) error { return notBuiltError{msg: msg} }

// IsNotBuilt reports whether err indicates a missing backend build.
func IsNotBuilt(err error) bool {
	var nb notBuiltError
	return errors.As(err, &nb)
}
