// Package escrowerr models the semantic error kinds of spec.md §7 as typed
// values, rather than as syntactic string matches, so callers can branch on
// `errors.As` without parsing a message.
package escrowerr

import "fmt"

// Kind is one of the semantic error kinds enumerated in spec.md §7.
type Kind string

// Error kinds.
const (
	KindValidation        Kind = "ValidationError"
	KindNotFound          Kind = "NotFound"
	KindUnauthorized      Kind = "Unauthorized"
	KindIllegalTransition Kind = "IllegalTransition"
	KindNoHealthyBackend  Kind = "NoHealthyBackend"
	KindAllBusy           Kind = "AllBusy"
	KindBackendUnreachable Kind = "BackendUnreachable"
	KindBackendTimeout    Kind = "BackendTimeout"
	KindRPCError          Kind = "RpcError"
	KindProtocolError     Kind = "ProtocolError"
	KindIntegrityError    Kind = "IntegrityError"
	KindChallengeExpired  Kind = "ChallengeExpired"
	KindSignatureInvalid  Kind = "SignatureInvalid"
	KindInvalidResponse   Kind = "InvalidResponse"
)

// Error is a semantic error kind with a human-readable message and an
// optional wrapped cause. Sensitive details (wallet filenames, multisig_info
// strings) must never be placed in Message; they belong, if anywhere, in
// logs produced before the Error is constructed.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// RPCCode carries the remote JSON-RPC error code for KindRPCError.
	RPCCode int
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As to reach the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is an *Error of the given kind, following wraps.
func Is(err error, kind Kind) bool {
	var e *Error
	if !asError(err, &e) {
		return false
	}
	return e.Kind == kind
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
