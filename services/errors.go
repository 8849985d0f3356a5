package services

import "errors"

var (
	// ErrUnsupportedFileType rejects uploads whose extension maps to no
	// known source kind. Client error; nothing is persisted.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrExtraction means both recognition engines failed. Fatal to the
	// upload request.
	ErrExtraction = errors.New("failed to extract text")
)
