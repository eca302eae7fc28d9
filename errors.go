package entcache

import (
	"errors"
	"fmt"
)

// ContractError reports a caller bug. It is returned before any provider
// call is made and must never be retried.
type ContractError struct {
	Op  string
	Key string
	Err error
}

func (e *ContractError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("entcache: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("entcache: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ContractError) Unwrap() error { return e.Err }

var (
	ErrNegativeTTL = errors.New("negative ttl")
	ErrUnknownTag  = errors.New("value has no recognized type tag")
)

// TransportError wraps a failure of the backing provider (unreachable,
// timeout, server error). Keys are the caller's, not the namespaced ones.
type TransportError struct {
	Op   string
	Keys []string
	Err  error
}

func (e *TransportError) Error() string {
	switch len(e.Keys) {
	case 0:
		return fmt.Sprintf("entcache: %s: transport: %v", e.Op, e.Err)
	case 1:
		return fmt.Sprintf("entcache: %s %q: transport: %v", e.Op, e.Keys[0], e.Err)
	default:
		return fmt.Sprintf("entcache: %s (%d keys): transport: %v", e.Op, len(e.Keys), e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err came from the cache backend.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
