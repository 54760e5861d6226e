package forge

const (
	// INVALID_ARGUMENT_ERROR_CODE represents an error for invalid input arguments.
	INVALID_ARGUMENT_ERROR_CODE = 3
	// NOT_FOUND_ERROR_CODE represents an error for a resource not being found.
	NOT_FOUND_ERROR_CODE = 5
	// PERMISSION_DENIED_ERROR_CODE represents an error for insufficient permissions.
	PERMISSION_DENIED_ERROR_CODE = 7
	// RESOURCE_EXHAUSTED_ERROR_CODE represents an error for a per-account limit being reached.
	RESOURCE_EXHAUSTED_ERROR_CODE = 8
	// FAILED_PRECONDITION_ERROR_CODE represents an error for a failed precondition.
	FAILED_PRECONDITION_ERROR_CODE = 9
	// ABORTED_ERROR_CODE represents a write that lost a concurrent update race.
	ABORTED_ERROR_CODE = 10
	// UNIMPLEMENTED_ERROR_CODE represents an error for an unimplemented feature.
	UNIMPLEMENTED_ERROR_CODE = 12
	// INTERNAL_ERROR_CODE represents an internal server error.
	INTERNAL_ERROR_CODE = 13
)
