package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

type ErrorKind string

const (
	KindMissingReference         ErrorKind = "missing_reference"
	KindInvalidPosition          ErrorKind = "invalid_position"
	KindReferenceNotFound        ErrorKind = "reference_not_found"
	KindTypeConstraintViolated   ErrorKind = "type_constraint_violated"
	KindCycleDetected            ErrorKind = "cycle_detected"
	KindInternalConsistencyFault ErrorKind = "internal_consistency_fault"
)

// Sentinels for errors.Is; only the Kind is compared.
var (
	ErrMissingReference         = &PositionError{Kind: KindMissingReference}
	ErrInvalidPosition          = &PositionError{Kind: KindInvalidPosition}
	ErrReferenceNotFound        = &PositionError{Kind: KindReferenceNotFound}
	ErrTypeConstraintViolated   = &PositionError{Kind: KindTypeConstraintViolated}
	ErrCycleDetected            = &PositionError{Kind: KindCycleDetected}
	ErrInternalConsistencyFault = &PositionError{Kind: KindInternalConsistencyFault}
)

// PositionError is returned by the positioning engine. It never wraps a
// ServiceError; the service layer converts it with toServiceError.
type PositionError struct {
	Kind    ErrorKind
	NodeID  *uuid.UUID
	Message string
	Cause   error
}

func (e *PositionError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.NodeID != nil {
		msg = fmt.Sprintf("%s (node %s)", msg, e.NodeID)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *PositionError) Unwrap() error { return e.Cause }

func (e *PositionError) Is(target error) bool {
	t, ok := target.(*PositionError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newPositionError(kind ErrorKind, nodeID *uuid.UUID, message string, cause error) *PositionError {
	var id *uuid.UUID
	if nodeID != nil {
		v := *nodeID
		id = &v
	}
	return &PositionError{Kind: kind, NodeID: id, Message: message, Cause: cause}
}

type ServiceError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

var positionErrorStatus = map[ErrorKind]struct {
	status int
	code   string
}{
	KindMissingReference:         {http.StatusBadRequest, "FUNCTREE_MISSING_REFERENCE"},
	KindInvalidPosition:          {http.StatusBadRequest, "FUNCTREE_INVALID_POSITION"},
	KindReferenceNotFound:        {http.StatusNotFound, "FUNCTREE_REFERENCE_NOT_FOUND"},
	KindTypeConstraintViolated:   {http.StatusUnprocessableEntity, "FUNCTREE_TYPE_CONSTRAINT"},
	KindCycleDetected:            {http.StatusUnprocessableEntity, "FUNCTREE_CYCLE_DETECTED"},
	KindInternalConsistencyFault: {http.StatusInternalServerError, "FUNCTREE_INCONSISTENT_TREE"},
}

// toServiceError maps any error produced below the service into a
// ServiceError. Already mapped errors pass through unchanged.
func toServiceError(err error) error {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	var posErr *PositionError
	if errors.As(err, &posErr) {
		m, ok := positionErrorStatus[posErr.Kind]
		if !ok {
			return newServiceError(http.StatusInternalServerError, "FUNCTREE_INTERNAL", posErr.Error(), err)
		}
		return newServiceError(m.status, m.code, posErr.Error(), err)
	}
	if errors.Is(err, ErrNodeNotFound) {
		return newServiceError(http.StatusNotFound, "FUNCTREE_NODE_NOT_FOUND", "node not found", err)
	}
	return mapPgErrorToServiceError(err)
}

// AsServiceError maps err for transport layers that sit outside the service,
// such as request parsing in controllers.
func AsServiceError(err error) *ServiceError {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	if errors.As(toServiceError(err), &svcErr) {
		return svcErr
	}
	return newServiceError(http.StatusInternalServerError, "FUNCTREE_INTERNAL", err.Error(), err)
}
