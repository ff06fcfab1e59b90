package service

import "fmt"

// Типизированные ошибки для корректного маппинга на HTTP-коды в
// delivery-слое; обе несут человекочитаемое сообщение для клиента.

// DistributionError reports a user-correctable inconsistency in
// assignment data. The process is not started.
type DistributionError struct {
	Reason string
}

func (e *DistributionError) Error() string {
	return e.Reason
}

func newDistributionError(format string, args ...interface{}) *DistributionError {
	return &DistributionError{Reason: fmt.Sprintf(format, args...)}
}

// PermissionError reports that the caller's roles do not authorize the
// operation. No state change happens.
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string {
	return e.Reason
}

func newPermissionError(reason string) *PermissionError {
	return &PermissionError{Reason: reason}
}
