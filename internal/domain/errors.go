package domain

import "errors"

var (
	// ErrInvalidState reports a transition requested from the wrong status.
	ErrInvalidState = errors.New("invalid state")
	// ErrNoActivePolicy reports that no active policy can serve as default.
	ErrNoActivePolicy = errors.New("no active schedule policy")
	// ErrPersistence wraps store transaction failures.
	ErrPersistence = errors.New("persistence failure")
	// ErrPolicyMisconfigured reports a policy that cannot be saved.
	ErrPolicyMisconfigured = errors.New("policy misconfigured")
	// ErrNotFound reports an unknown article, item or policy.
	ErrNotFound = errors.New("not found")
)
