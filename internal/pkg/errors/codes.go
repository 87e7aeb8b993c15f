package errors

import (
	"fmt"
	"net/http"
)

// Error codes are stable identifiers surfaced to world-building tooling.
// Backend logs stay in English; tooling owns presentation.

// Reference integrity codes.
const (
	CodeAuthorityNotFound = "AUTHORITY_NOT_FOUND"
	CodeRouteNotFound     = "ROUTE_NOT_FOUND"
	CodePatrolNotFound    = "PATROL_NOT_FOUND"
	CodeLawNotFound       = "LAW_NOT_FOUND"
	CodeCrimeNotFound     = "CRIME_NOT_FOUND"
)

// Configuration codes. Reported to tooling, never retried.
const (
	CodeInvalidNodeReference = "INVALID_NODE_REFERENCE"
	CodeInvalidRoute         = "INVALID_ROUTE"
	CodeNotConfigured        = "NOT_CONFIGURED"
	CodeAuthorityExists      = "AUTHORITY_ALREADY_EXISTS"
	CodeRouteExists          = "ROUTE_ALREADY_EXISTS"
)

// Business-rule codes.
const (
	CodeAlreadyInPatrol  = "ALREADY_IN_PATROL"
	CodeNotAMember       = "NOT_A_PATROL_MEMBER"
	CodePatrolDisbanded  = "PATROL_DISBANDED"
	CodeAlreadyResolved  = "CRIME_ALREADY_RESOLVED"
	CodeRouteAtCapacity  = "ROUTE_AT_CAPACITY"
	CodeHookFailed       = "START_TRIGGER_FAILED"
	CodeValidationFailed = "VALIDATION_FAILED"
)

// ErrAuthorityNotFoundf reports an unknown legal authority.
func ErrAuthorityNotFoundf(authorityID string) *AppError {
	return Wrap(ErrNotFound, CodeAuthorityNotFound, "legal authority not found", http.StatusNotFound).
		WithParams(map[string]interface{}{"authority_id": authorityID})
}

// ErrRouteNotFoundf reports an unknown patrol route.
func ErrRouteNotFoundf(routeID string) *AppError {
	return Wrap(ErrNotFound, CodeRouteNotFound, "patrol route not found", http.StatusNotFound).
		WithParams(map[string]interface{}{"route_id": routeID})
}

// ErrPatrolNotFoundf reports an unknown or already disbanded patrol.
func ErrPatrolNotFoundf(patrolID string) *AppError {
	return Wrap(ErrNotFound, CodePatrolNotFound, "patrol not found", http.StatusNotFound).
		WithParams(map[string]interface{}{"patrol_id": patrolID})
}

// ErrLawNotFoundf reports an unknown law.
func ErrLawNotFoundf(lawID string) *AppError {
	return Wrap(ErrNotFound, CodeLawNotFound, "law not found", http.StatusNotFound).
		WithParams(map[string]interface{}{"law_id": lawID})
}

// ErrInvalidNodeReferencef reports a territory node that does not exist or is
// out of reach for the purpose it was supplied for.
func ErrInvalidNodeReferencef(nodeID, reason string) *AppError {
	return Wrap(ErrBadRequest, CodeInvalidNodeReference,
		fmt.Sprintf("invalid node reference %q: %s", nodeID, reason), http.StatusBadRequest).
		WithParams(map[string]interface{}{"node_id": nodeID})
}

// ErrAlreadyInPatrolf reports a character that already serves in another patrol.
func ErrAlreadyInPatrolf(characterID, patrolID string) *AppError {
	return Wrap(ErrConflict, CodeAlreadyInPatrol, "character already belongs to an active patrol", http.StatusConflict).
		WithParams(map[string]interface{}{"character_id": characterID, "patrol_id": patrolID})
}

// ErrNotConfiguredf reports an unset holding node. Callers treat it as
// "no facility" and fall back, it is not fatal.
func ErrNotConfiguredf(authorityID, purpose string) *AppError {
	return Wrap(ErrNotConfigured, CodeNotConfigured, "holding node not configured: "+purpose, http.StatusUnprocessableEntity).
		WithParams(map[string]interface{}{"authority_id": authorityID, "purpose": purpose})
}

// ErrInvalidRoutef reports a malformed route template.
func ErrInvalidRoutef(reason string) *AppError {
	return Wrap(ErrBadRequest, CodeInvalidRoute, "invalid patrol route: "+reason, http.StatusBadRequest)
}
