// Package errs implements the error taxonomy of §7: every failure a
// strategy, facade, or manager produces is classified into one of a
// small number of kinds so callers can decide whether to retry, drop,
// record, or shut down without inspecting error strings.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation-policy purposes (§7).
type Kind string

const (
	// Transient errors (timeouts, rate limits, RPC hiccups) are
	// retried with exponential backoff up to 3 attempts within the
	// operation's deadline.
	Transient Kind = "transient"
	// Stale errors (expired quote, outdated tick, past target block)
	// mean the operation is dropped; this is not a failure.
	Stale Kind = "stale"
	// Rejected errors (venue rejects order, relay rejects bundle,
	// oracle disagreement) are recorded against the collaborator's
	// quality score; the operation fails without retry.
	Rejected Kind = "rejected"
	// Reverted errors (on-chain simulation or execution revert) are
	// logged with calldata context; the opportunity is discarded.
	Reverted Kind = "reverted"
	// Fatal errors (missing signer, invalid config, unrecoverable
	// key-value store error) bring down the orchestrator.
	Fatal Kind = "fatal"
)

// Classified is an error tagged with its §7 kind and the component
// responsible for it, plus the opportunity it concerns (if any).
type Classified struct {
	Kind        Kind
	Component   string
	Opportunity string
	Err         error
}

func (c *Classified) Error() string {
	if c.Opportunity != "" {
		return fmt.Sprintf("%s[%s]: opportunity=%s: %v", c.Component, c.Kind, c.Opportunity, c.Err)
	}
	return fmt.Sprintf("%s[%s]: %v", c.Component, c.Kind, c.Err)
}

func (c *Classified) Unwrap() error { return c.Err }

// New classifies err as having occurred in component, optionally
// concerning a specific opportunity id.
func New(kind Kind, component string, err error) *Classified {
	return &Classified{Kind: kind, Component: component, Err: err}
}

// WithOpportunity attaches an opportunity id to a classified error.
func (c *Classified) WithOpportunity(id string) *Classified {
	cp := *c
	cp.Opportunity = id
	return &cp
}

// KindOf extracts the Kind from err if it (or something it wraps) is
// a *Classified, defaulting to Transient for unclassified errors so
// callers fail closed toward retrying rather than silently dropping.
func KindOf(err error) Kind {
	var c *Classified
	if errors.As(err, &c) {
		return c.Kind
	}
	return Transient
}

// IsRetryable reports whether an error's classification permits a
// bounded retry with backoff.
func IsRetryable(err error) bool {
	return KindOf(err) == Transient
}
