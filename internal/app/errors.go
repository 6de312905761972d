package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Stable error codes for the vote and resolution orchestrators. Callers
// branch on Code, not on Message.
func errInvalidVoteValue() *DomainError {
	return domainError(http.StatusUnprocessableEntity, "INVALID_VOTE_VALUE", "vote value must be +1 or -1", nil)
}

func errEntityNotFound(kind string) *DomainError {
	return domainError(http.StatusNotFound, "ENTITY_NOT_FOUND", kind+" not found", nil)
}

func errReportNotFound() *DomainError {
	return domainError(http.StatusNotFound, "REPORT_NOT_FOUND", "report not found", nil)
}

// AlreadyResolved is reported distinctly so idempotent callers can
// treat it as a no-op success.
func errAlreadyResolved() *DomainError {
	return domainError(http.StatusConflict, "ALREADY_RESOLVED", "report is already resolved", nil)
}

func errTransactionConflict() *DomainError {
	return domainError(http.StatusConflict, "TRANSACTION_CONFLICT", "concurrent update conflict, retry the request", nil)
}
