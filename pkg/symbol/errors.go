package symbol

import "fmt"

// InputError is returned when the design or layout document is not valid JSON
// of the expected shape.
type InputError struct {
	// Document is "design" or "layout".
	Document string
	Err      error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s input: %v", e.Document, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// UnknownInstanceError is returned by ExpandInstance when the id does not
// name a symbol instance of the session's tree.
type UnknownInstanceError struct {
	ID     string
	Reason string
	Err    error
}

func (e *UnknownInstanceError) Error() string {
	return fmt.Sprintf("cannot re-expand %q: %s", e.ID, e.Reason)
}

func (e *UnknownInstanceError) Unwrap() error { return e.Err }

// UnknownMasterError is returned by ExpandInstance for a master id that was
// not collected from the document.
type UnknownMasterError struct {
	ID        string
	Available []string
	Err       error
}

func (e *UnknownMasterError) Error() string {
	return fmt.Sprintf("unknown master %q\nAvailable masters: %v", e.ID, e.Available)
}

func (e *UnknownMasterError) Unwrap() error { return e.Err }

// CycleError is returned by ExpandInstance when the requested master is
// already being expanded by an enclosing instance, or the instance sits at
// the nesting limit. The instance is left unchanged.
type CycleError struct {
	ID       string
	MasterID string
	Err      error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cannot expand %q with master %q: %v", e.ID, e.MasterID, e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }
