package textgen

// unavailableError marks a text backend that cannot serve in this build or
// configuration. The HTTP layer maps it to 503.
type unavailableError struct {
	msg string
}

func (e unavailableError) Error() string { return "text backend unavailable: " + e.msg }

func errUnavailable(msg string) error { return unavailableError{msg: msg} }

// IsUnavailable reports whether err means the text backend cannot serve.
func IsUnavailable(err error) bool {
	_, ok := err.(unavailableError)
	return ok
}

// modelMissingError means the configured model file does not exist on disk.
type modelMissingError struct {
	path string
}

func (e modelMissingError) Error() string { return "text model not found: " + e.path }

// IsModelMissing reports whether err means the model file is absent.
func IsModelMissing(err error) bool {
	_, ok := err.(modelMissingError)
	return ok
}

// textValidationError rejects a malformed text request. Maps to 400.
type textValidationError struct {
	msg string
}

func (e textValidationError) Error() string { return e.msg }

func errTextValidation(msg string) error { return textValidationError{msg: msg} }

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	_, ok := err.(textValidationError)
	return ok
}
