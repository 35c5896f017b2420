package extract

import "errors"

var (
	// ErrUnsupportedFormat indicates a content type the pipeline cannot ingest.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrService indicates a failure reported by the extraction service.
	ErrService = errors.New("extraction service error")
	// ErrTimeout indicates the extraction job did not reach a terminal state
	// within the bounded polling window.
	ErrTimeout = errors.New("extraction timed out")
)
