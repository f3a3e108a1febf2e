package persistence

import "errors"

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates no definition exists for the id+version pair.
	ErrWorkflowNotFound = errors.New("workflow definition not found")

	// ErrExecutionNotFound indicates an execution was not found by id.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrExecutionAlreadyExists indicates an execution with the same id exists.
	ErrExecutionAlreadyExists = errors.New("execution already exists")

	// ErrCredentialNotFound indicates no credential matches the lookup.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrVerificationNotFound indicates no verification row matches the lookup.
	ErrVerificationNotFound = errors.New("verification not found")
)

// IsWorkflowNotFound checks if an error indicates a missing definition.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsExecutionNotFound checks if an error indicates a missing execution.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsExecutionAlreadyExists checks if an error indicates a duplicate execution id.
func IsExecutionAlreadyExists(err error) bool {
	return errors.Is(err, ErrExecutionAlreadyExists)
}

// IsCredentialNotFound checks if an error indicates a missing credential.
func IsCredentialNotFound(err error) bool {
	return errors.Is(err, ErrCredentialNotFound)
}

// IsVerificationNotFound checks if an error indicates a missing verification.
func IsVerificationNotFound(err error) bool {
	return errors.Is(err, ErrVerificationNotFound)
}
