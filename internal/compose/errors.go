package compose

import "fmt"

// DocumentOpenError means a source is missing, unreadable, or not a PDF.
type DocumentOpenError struct {
	Role string
	Ref  string
	Err  error
}

func (e *DocumentOpenError) Error() string {
	return fmt.Sprintf("open %s document %s: %v", e.Role, e.Ref, e.Err)
}

func (e *DocumentOpenError) Unwrap() error { return e.Err }

// EmptyDocumentError means a source has no pages.
type EmptyDocumentError struct {
	Role string
	Ref  string
}

func (e *EmptyDocumentError) Error() string {
	return fmt.Sprintf("%s document %s has no pages", e.Role, e.Ref)
}

// PairingMismatchError means pairwise composition was asked for documents
// of different length.
type PairingMismatchError struct {
	Left  int
	Right int
}

func (e *PairingMismatchError) Error() string {
	return fmt.Sprintf("pairwise 2-up needs equal page counts: main has %d, insert has %d", e.Left, e.Right)
}

// PageCopyError means the PDF library could not copy or place pages.
type PageCopyError struct {
	Step string
	Err  error
}

func (e *PageCopyError) Error() string {
	return fmt.Sprintf("page copy failed at %s: %v", e.Step, e.Err)
}

func (e *PageCopyError) Unwrap() error { return e.Err }

// WriteError means the destination could not be written.
type WriteError struct {
	Ref string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Ref, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
