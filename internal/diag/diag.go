// Package diag defines the errors produced while composing a supergraph.
//
// Every stage of the pipeline reports failures as a List of Error values.
// Each Error carries a Kind so callers can tell a malformed type definition
// from a subgraph-scoped failure, an unsatisfiable field, or an internal
// failure of a collaborator.
package diag

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a composition error.
type Kind int

const (
	// KindTypeDefinitionInvalid reports a schema-level structural problem.
	KindTypeDefinitionInvalid Kind = iota
	// KindSubgraph reports a failure scoped to one named subgraph.
	KindSubgraph
	// KindSatisfiability reports a field with no resolution path.
	KindSatisfiability
	// KindInternal reports a failure of a collaborator or of the pipeline.
	KindInternal
)

// String returns the stable code of the kind.
func (k Kind) String() string {
	switch k {
	case KindTypeDefinitionInvalid:
		return "TYPE_DEFINITION_INVALID"
	case KindSubgraph:
		return "SUBGRAPH_ERROR"
	case KindSatisfiability:
		return "SATISFIABILITY_ERROR"
	case KindInternal:
		return "INTERNAL_ERROR"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a single composition error.
type Error struct {
	Kind Kind
	// Subgraph names the subgraph the error belongs to, if any.
	Subgraph string
	// Type and Field locate satisfiability errors.
	Type  string
	Field string
	// Message is the human readable description.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

// Error formats the error as "[CODE] message", prefixed with the subgraph
// name for subgraph-scoped errors.
func (e Error) Error() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(e.Kind.String())
	b.WriteString("] ")
	if e.Subgraph != "" {
		fmt.Fprintf(&b, "subgraph %q: ", e.Subgraph)
	}
	b.WriteString(e.Message)
	return b.String()
}

// Unwrap returns the underlying cause.
func (e Error) Unwrap() error { return e.Err }

// TypeDefinitionInvalid builds a TYPE_DEFINITION_INVALID error.
func TypeDefinitionInvalid(msg string) Error {
	return Error{Kind: KindTypeDefinitionInvalid, Message: msg}
}

// TypeDefinitionInvalidf formats a message and builds a TYPE_DEFINITION_INVALID error.
func TypeDefinitionInvalidf(format string, args ...any) Error {
	return TypeDefinitionInvalid(fmt.Sprintf(format, args...))
}

// SubgraphError wraps err as a failure of the named subgraph.
func SubgraphError(subgraph string, err error) Error {
	msg := "unknown error"
	if err != nil {
		msg = strings.TrimSpace(err.Error())
	}
	return Error{Kind: KindSubgraph, Subgraph: subgraph, Message: msg, Err: err}
}

// SatisfiabilityError reports that typeName.fieldName cannot be resolved.
func SatisfiabilityError(typeName, fieldName, msg string) Error {
	return Error{Kind: KindSatisfiability, Type: typeName, Field: fieldName, Message: msg}
}

// InternalError builds an INTERNAL_ERROR.
func InternalError(msg string) Error {
	return Error{Kind: KindInternal, Message: msg}
}

// Internalf formats a message and builds an INTERNAL_ERROR.
func Internalf(format string, args ...any) Error {
	return InternalError(fmt.Sprintf(format, args...))
}

// From classifies an arbitrary error. Composition errors are returned as
// they are, anything else becomes an INTERNAL_ERROR wrapping err.
func From(err error) Error {
	var e Error
	if errors.As(err, &e) {
		return e
	}
	return Error{Kind: KindInternal, Message: err.Error(), Err: err}
}
