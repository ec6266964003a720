package model

import "errors"

var (
	// ErrNotFound is returned by stores when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials covers wrong password and unknown email alike,
	// so the caller cannot tell whether the address is registered.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked is returned for disabled accounts. Deliberately
	// distinct from ErrInvalidCredentials.
	ErrAccountLocked = errors.New("account locked")

	// ErrOTPInvalid covers wrong code, missing account and expired code
	// uniformly to avoid oracle leaks.
	ErrOTPInvalid = errors.New("one-time code invalid or expired")

	// ErrConflictingDependency is returned when a delete is blocked by a
	// row that still references the target.
	ErrConflictingDependency = errors.New("conflicting dependency")

	// ErrStorageUnavailable is an infrastructure failure, not a security
	// decision. Detail goes to the logs, not the caller.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrEmailTaken is returned on registration with an already used email.
	ErrEmailTaken = errors.New("email already registered")
)
