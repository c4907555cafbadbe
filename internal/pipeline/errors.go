package pipeline

// ValidationError reports a malformed incoming event. No state is
// mutated when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid event: " + e.Reason
}
