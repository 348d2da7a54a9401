package graph

import "errors"

var (
	// ErrTaskNotFound means the referenced task or list no longer exists on
	// the remote side.
	ErrTaskNotFound = errors.New("task not found")

	// ErrAuthorizationExpired means the access token was rejected and a
	// forced refresh did not recover it. The user must reauthorize.
	ErrAuthorizationExpired = errors.New("authorization expired")

	// ErrRemoteUnavailable means the request kept failing with transient
	// errors after all retries were spent.
	ErrRemoteUnavailable = errors.New("remote service unavailable")
)
