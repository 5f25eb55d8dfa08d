// Package errors defines the error taxonomy for loading, writing and
// re-reading PDF documents.
package errors

import (
	stderrors "errors"
	"fmt"
)

// PDFError is a document-level failure with enough context to tell the user
// which file and object it concerns.
type PDFError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Context    string    `json:"context,omitempty"`
	ObjectNum  int       `json:"object_num,omitempty"`
	FilePath   string    `json:"file_path,omitempty"`
	PageNumber int       `json:"page_number,omitempty"`
	Err        error     `json:"-"`
}

// ErrorType categorises PDF failures.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeLoad means the source could not be parsed as a PDF.
	ErrorTypeLoad
	// ErrorTypeEncrypted means the source is encrypted; encrypted input is not supported.
	ErrorTypeEncrypted
	// ErrorTypeStructure means a structure the writer needs is missing or
	// malformed, e.g. a page dictionary or the catalog.
	ErrorTypeStructure
	// ErrorTypeIO means reading or writing a file failed.
	ErrorTypeIO
	// ErrorTypeSamePath means the destination resolves to the source file.
	ErrorTypeSamePath
	// ErrorTypeTooLarge means the source exceeds the configured size limit.
	ErrorTypeTooLarge
	// ErrorTypeVerify means the written file did not read back as expected.
	ErrorTypeVerify
)

// String returns the upper-case name used in tool output.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeLoad:
		return "LOAD"
	case ErrorTypeEncrypted:
		return "ENCRYPTED"
	case ErrorTypeStructure:
		return "STRUCTURE"
	case ErrorTypeIO:
		return "IO"
	case ErrorTypeSamePath:
		return "SAME_PATH"
	case ErrorTypeTooLarge:
		return "TOO_LARGE"
	case ErrorTypeVerify:
		return "VERIFY"
	default:
		return "UNKNOWN"
	}
}

// Error implements the error interface
func (e *PDFError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.PageNumber > 0 {
		msg += fmt.Sprintf(" (page %d)", e.PageNumber)
	}
	if e.ObjectNum > 0 {
		msg += fmt.Sprintf(" (object %d)", e.ObjectNum)
	}
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *PDFError) Unwrap() error { return e.Err }

// NewPDFError creates a new PDFError
func NewPDFError(errorType ErrorType, message string) *PDFError {
	return &PDFError{Type: errorType, Message: message}
}

// WrapError wraps err as a PDFError of the given type.
func WrapError(errorType ErrorType, message string, err error) *PDFError {
	return &PDFError{Type: errorType, Message: message, Err: err}
}

// WithContext adds context to an existing PDFError
func (e *PDFError) WithContext(context string) *PDFError {
	e.Context = context
	return e
}

// WithObject records the object number involved.
func (e *PDFError) WithObject(objNum int) *PDFError {
	e.ObjectNum = objNum
	return e
}

// WithFile adds file path information to an existing PDFError
func (e *PDFError) WithFile(filePath string) *PDFError {
	e.FilePath = filePath
	return e
}

// WithPage adds a 1-based page number to an existing PDFError
func (e *PDFError) WithPage(pageNumber int) *PDFError {
	e.PageNumber = pageNumber
	return e
}

// TypeOf returns the type of the first PDFError in err's chain.
func TypeOf(err error) ErrorType {
	var pe *PDFError
	if stderrors.As(err, &pe) {
		return pe.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err's chain contains a PDFError of type t.
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}
