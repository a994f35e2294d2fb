package kernel

// Error describes a kernel error. All kernel errors are defined as global
// variables that are pointers to the Error structure, or constructed on the
// fly from a module name and message. This stems from the fact that the Go
// allocator is not available until kernel/goruntime.Init has run, so we
// cannot rely on errors.New.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
