// Package policy implements the namespace access policy consulted by
// every operation before any cluster call. Centralizing the check in one
// object removes the risk of a new entry point forgetting it.
package policy

import (
	"github.com/go-logr/logr"

	kronicerrors "github.com/kronic-dev/kronic/internal/errors"
)

// Reason explains why a namespace was permitted or denied.
type Reason string

const (
	// ReasonUnrestricted means no restriction is configured.
	ReasonUnrestricted Reason = "unrestricted"
	// ReasonAllowListed means the namespace is on the allow-list.
	ReasonAllowListed Reason = "in-allow-list"
	// ReasonNamespaceOnly means namespace-only mode is active and the
	// namespace is the process's own.
	ReasonNamespaceOnly Reason = "namespace-only-match"
	// ReasonDenied means the namespace is not permitted.
	ReasonDenied Reason = "denied"
)

// Decision is the outcome of an access check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// NamespaceAccess decides whether operations against a namespace are
// permitted. Namespace-only mode takes precedence over the allow-list;
// an empty allow-list permits everything.
type NamespaceAccess struct {
	allowList     map[string]struct{}
	allowListed   []string
	namespaceOnly bool
	ownNamespace  string
	log           logr.Logger
}

// NewNamespaceAccess constructs the policy from the injected
// configuration. The allow-list and flags are copied; the policy is
// immutable afterwards.
func NewNamespaceAccess(allowNamespaces []string, namespaceOnly bool, ownNamespace string, log logr.Logger) *NamespaceAccess {
	allow := make(map[string]struct{}, len(allowNamespaces))
	listed := make([]string, 0, len(allowNamespaces))
	for _, ns := range allowNamespaces {
		allow[ns] = struct{}{}
		listed = append(listed, ns)
	}

	return &NamespaceAccess{
		allowList:     allow,
		allowListed:   listed,
		namespaceOnly: namespaceOnly,
		ownNamespace:  ownNamespace,
		log:           log.WithName("policy"),
	}
}

// Check returns the access decision for a namespace.
func (p *NamespaceAccess) Check(namespace string) Decision {
	if p.namespaceOnly {
		if namespace == p.ownNamespace {
			return Decision{Allowed: true, Reason: ReasonNamespaceOnly}
		}
		return Decision{Allowed: false, Reason: ReasonDenied}
	}

	if len(p.allowList) == 0 {
		return Decision{Allowed: true, Reason: ReasonUnrestricted}
	}

	if _, ok := p.allowList[namespace]; ok {
		return Decision{Allowed: true, Reason: ReasonAllowListed}
	}

	return Decision{Allowed: false, Reason: ReasonDenied}
}

// Require short-circuits with an AccessDenied error when the namespace
// is not permitted. It must run before any cluster call; a denial means
// zero calls were made.
func (p *NamespaceAccess) Require(namespace string) error {
	decision := p.Check(namespace)
	if decision.Allowed {
		p.log.V(1).Info("namespace access granted", "namespace", namespace, "reason", decision.Reason)
		return nil
	}

	if p.namespaceOnly {
		p.log.Info("namespace access denied", "namespace", namespace, "ownNamespace", p.ownNamespace, "mode", "namespace-only")
	} else {
		p.log.Info("namespace access denied", "namespace", namespace, "allowList", p.allowListed)
	}
	return kronicerrors.AccessDenied(namespace)
}

// AllowedNamespaces returns the set of namespaces this policy permits,
// or nil when access is unrestricted. Used by list operations to fan out
// one namespaced list call per permitted namespace.
func (p *NamespaceAccess) AllowedNamespaces() []string {
	if p.namespaceOnly {
		return []string{p.ownNamespace}
	}

	if len(p.allowListed) == 0 {
		return nil
	}

	out := make([]string, len(p.allowListed))
	copy(out, p.allowListed)
	return out
}
