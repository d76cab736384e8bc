// Package errors defines the error taxonomy shared by every layer of the
// core. Each entry point returns exactly one of these classes so callers
// can distinguish "denied", "already gone", "raced", and "cluster
// degraded" without inspecting platform-specific error types.
package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// ErrAccessDenied indicates the namespace access policy rejected the
// operation. No cluster call was made.
var ErrAccessDenied = errors.New("namespace access denied")

// ErrNotFound indicates the target resource does not exist. Terminal;
// never retried.
var ErrNotFound = errors.New("resource not found")

// ErrConflict indicates a concurrent modification was detected via
// resourceVersion, or a name collision on create. Terminal for this
// call; the caller must re-read and retry with fresh state.
var ErrConflict = errors.New("resource conflict")

// ErrValidationFailed indicates a user-supplied definition failed
// semantic validation before reaching the cluster.
var ErrValidationFailed = errors.New("validation failed")

// ErrClusterUnavailable indicates a transient connectivity or timeout
// condition. Retried internally up to the budget, then surfaced.
var ErrClusterUnavailable = errors.New("cluster unavailable")

// ErrMalformedInput indicates an unparsable user-supplied definition.
var ErrMalformedInput = errors.New("malformed input")

// IsAccessDenied reports whether err is an access policy denial.
func IsAccessDenied(err error) bool { return errors.Is(err, ErrAccessDenied) }

// IsNotFound reports whether err indicates an absent resource.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err indicates a lost optimistic-concurrency
// race or a name collision.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsValidationFailed reports whether err carries validation issues.
func IsValidationFailed(err error) bool { return errors.Is(err, ErrValidationFailed) }

// IsMalformedInput reports whether err indicates an unparsable definition.
func IsMalformedInput(err error) bool { return errors.Is(err, ErrMalformedInput) }

// IsUnavailable reports whether err is a transient cluster condition
// worth retrying.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrClusterUnavailable) {
		return true
	}

	errStr := strings.ToLower(err.Error())

	transientPatterns := []string{
		"connection refused",
		"connection reset",
		"context deadline exceeded",
		"i/o timeout",
		"no such host",
		"network is unreachable",
		"temporary failure",
		"broken pipe",
		"too many requests",
		"service unavailable",
		"internal server error",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// AccessDenied builds a terminal denial error for the given namespace.
func AccessDenied(namespace string) error {
	return fmt.Errorf("%w: namespace %q", ErrAccessDenied, namespace)
}

// WrapUnavailable wraps an error as a transient cluster condition.
// Already-classified errors are returned as-is.
func WrapUnavailable(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrClusterUnavailable) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrClusterUnavailable, err)
}

// WrapMalformedInput wraps a parse failure.
func WrapMalformedInput(err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrMalformedInput, err)
}

// ClassifyAPIError normalizes a Kubernetes API error into the taxonomy.
// NotFound, Conflict (including AlreadyExists), and Forbidden are
// semantically final. Timeouts, rate limiting, and 5xx-class server
// errors classify as unavailable so the retry budget applies. Anything
// unrecognized is wrapped with diagnostic detail rather than dropped.
func ClassifyAPIError(verb, kind, namespace, name string, err error) error {
	if err == nil {
		return nil
	}

	ref := kind
	if name != "" {
		ref = fmt.Sprintf("%s %s/%s", kind, namespace, name)
	} else if namespace != "" {
		ref = fmt.Sprintf("%s in %s", kind, namespace)
	}

	switch {
	case apierrors.IsNotFound(err):
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	case apierrors.IsAlreadyExists(err) || apierrors.IsConflict(err):
		return fmt.Errorf("%w: %s: %w", ErrConflict, ref, err)
	case apierrors.IsForbidden(err):
		// Forbidden is an RBAC answer from the cluster, distinct from our
		// own policy denial, but equally final for the caller.
		return fmt.Errorf("%w: cluster forbade %s of %s: %w", ErrAccessDenied, verb, ref, err)
	case apierrors.IsTimeout(err) || apierrors.IsServerTimeout(err) ||
		apierrors.IsTooManyRequests(err) || apierrors.IsServiceUnavailable(err) ||
		apierrors.IsInternalError(err) || IsUnavailable(err):
		return fmt.Errorf("%w: %s of %s: %w", ErrClusterUnavailable, verb, ref, err)
	case apierrors.IsInvalid(err) || apierrors.IsBadRequest(err):
		return fmt.Errorf("%w: cluster rejected %s of %s: %w", ErrValidationFailed, verb, ref, err)
	default:
		return fmt.Errorf("unexpected cluster error during %s of %s: %w", verb, ref, err)
	}
}
