// Package joinql builds object queries over a metamodel and resolves the
// attribute paths they reference into a deduplicated join tree.
// This file defines the errors reported while building and rendering queries.
//
// All errors are either sentinel values or typed errors wrapping them, so
// callers inspect them with errors.Is and errors.As:
//
//	_, _, err := cb.Build()
//	if errors.Is(err, joinql.ErrAliasConflict) {
//	    // the same alias was bound to two different paths
//	}
//
//	var cycle *joinql.CyclicJoinError
//	if errors.As(err, &cycle) {
//	    fmt.Println(cycle.Aliases)
//	}
package joinql

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAliasConflict indicates an alias already bound to a different path
	// or already used as a select alias.
	ErrAliasConflict = errors.New("joinql: alias conflict")

	// ErrAmbiguousRoot indicates a relative path in a query with several roots.
	ErrAmbiguousRoot = errors.New("joinql: ambiguous root")

	// ErrImplicitJoinNotAllowed indicates a path that would need a new join
	// in a context where joins may not be created.
	ErrImplicitJoinNotAllowed = errors.New("joinql: implicit join not allowed")

	// ErrUnresolvedAttribute indicates a path segment that names no attribute.
	ErrUnresolvedAttribute = errors.New("joinql: unresolved attribute")

	// ErrTreatConflict indicates two different treat types for one join node.
	ErrTreatConflict = errors.New("joinql: treat conflict")

	// ErrIllegalTreat indicates a treat that is not a subtype or not allowed
	// at its position.
	ErrIllegalTreat = errors.New("joinql: illegal treat")

	// ErrSelectAliasDereference indicates a path that dereferences a select alias.
	ErrSelectAliasDereference = errors.New("joinql: can't dereference a select alias")

	// ErrCyclicJoinDependency indicates on-clauses that reference each other.
	ErrCyclicJoinDependency = errors.New("joinql: cyclic join dependency")

	// ErrUnsupportedCapability indicates a construct the dialect cannot express.
	ErrUnsupportedCapability = errors.New("joinql: unsupported by dialect")

	// ErrInvalidPath indicates a malformed or disallowed path.
	ErrInvalidPath = errors.New("joinql: invalid path")

	// ErrNoRoot indicates a query without any root.
	ErrNoRoot = errors.New("joinql: query has no root")

	// ErrUnknownEntity indicates a root or entity join on a name that is not
	// an entity of the metamodel.
	ErrUnknownEntity = errors.New("joinql: unknown entity")

	// ErrInvalidExpression indicates an expression that can't be used in
	// the clause it was added to.
	ErrInvalidExpression = errors.New("joinql: invalid expression")

	// ErrJoinTypeConflict indicates an explicit join repeated with a
	// different join type.
	ErrJoinTypeConflict = errors.New("joinql: join type conflict")
)

// AliasConflictError reports an alias bound to two paths.
type AliasConflictError struct {
	Alias   string
	OldPath string
	NewPath string
}

func (e *AliasConflictError) Error() string {
	return fmt.Sprintf("joinql: alias conflict [%s] [old=%s, new=%s]", e.Alias, e.OldPath, e.NewPath)
}

func (e *AliasConflictError) Is(target error) bool { return target == ErrAliasConflict }

// CyclicJoinError lists the aliases taking part in an on-clause cycle, in
// the order the cycle was discovered.
type CyclicJoinError struct {
	Aliases []string
}

func (e *CyclicJoinError) Error() string {
	return "joinql: cyclic join dependency between nodes: [" + strings.Join(e.Aliases, ", ") + "]"
}

func (e *CyclicJoinError) Is(target error) bool { return target == ErrCyclicJoinDependency }

// ImplicitJoinNotAllowedError carries the node, type and relation at which a
// disallowed implicit join would have been created.
type ImplicitJoinNotAllowedError struct {
	Alias    string
	Type     string
	Relation string
}

func (e *ImplicitJoinNotAllowedError) Error() string {
	return fmt.Sprintf("joinql: implicit join not allowed for %s.%s of type %s", e.Alias, e.Relation, e.Type)
}

func (e *ImplicitJoinNotAllowedError) Is(target error) bool {
	return target == ErrImplicitJoinNotAllowed
}
