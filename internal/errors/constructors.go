package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *ServiceError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigInvalid(reason string) *ServiceError {
	return New(CategoryConfig, SeverityFatal, "invalid configuration").
		WithContext("reason", reason)
}

// Request validation errors

func ValidationFailed(field, reason string) *ServiceError {
	return New(CategoryValidation, SeverityError, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

func MalformedRequest(cause error) *ServiceError {
	return Wrap(cause, CategoryValidation, SeverityError, "request body must be valid JSON").
		WithContext("malformed_body", true)
}

// Orchestration errors

func WorkspaceError(operation string, cause error) *ServiceError {
	return Wrap(cause, CategoryWorkspace, SeverityError, "workspace operation failed").
		WithContext("operation", operation)
}

func ArtifactWriteError(filename string, cause error) *ServiceError {
	return Wrap(cause, CategoryWorkspace, SeverityError, "failed to write stage input").
		WithContext("filename", filename)
}

func ArtifactReadError(filename string, cause error) *ServiceError {
	return Wrap(cause, CategoryWorkspace, SeverityError, "failed to read stage output").
		WithContext("filename", filename)
}

func ToolLaunchError(tool string, cause error) *ServiceError {
	return Wrap(cause, CategoryToolchain, SeverityError, "failed to launch external tool").
		WithContext("tool", tool)
}

func ToolTimeout(tool string, cause error) *ServiceError {
	return Wrap(cause, CategoryToolchain, SeverityError, "external tool exceeded configured timeout").
		WithContext("tool", tool)
}

// Internal errors

func InternalError(message string, cause error) *ServiceError {
	return Wrap(cause, CategoryInternal, SeverityError, message)
}
