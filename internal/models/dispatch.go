package models

import "errors"

// Operation describes one dispatch operation and the codes it reports on failure.
type Operation struct {
	// Name labels the operation in logs and metrics.
	Name string

	// MissingCode is reported when a required field is blank.
	MissingCode string

	// FailCode is reported for every other failure.
	FailCode string
}

// Dispatch operations.
var (
	OpExtractAudio    = Operation{Name: "extractAudio", MissingCode: CodeMissingVideoID, FailCode: CodeExtractFailed}
	OpExtractAudioURL = Operation{Name: "extractAudioUrl", MissingCode: CodeMissingVideoID, FailCode: CodeExtractFailed}
	OpSearch          = Operation{Name: "search", MissingCode: CodeMissingQuery, FailCode: CodeSearchFailed}
	OpRelated         = Operation{Name: "related", MissingCode: CodeMissingVideoID, FailCode: CodeRelatedFailed}
	OpSaavnSearch     = Operation{Name: "saavnSearch", MissingCode: CodeMissingQuery, FailCode: CodeSaavnFailed}
	OpDownload        = Operation{Name: "download", MissingCode: CodeMissingVideoID, FailCode: CodeDownloadFailed}
	OpStream          = Operation{Name: "stream", MissingCode: CodeMissingVideoID, FailCode: CodeExtractFailed}
)

// Code returns the dispatch error code for err.
func (o Operation) Code(err error) string {
	switch {
	case errors.Is(err, ErrMissingRequiredField):
		return o.MissingCode
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidRequest
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrTooManyRequests):
		return CodeRateLimited
	case errors.Is(err, ErrFeatureDisabled):
		return CodeDisabled
	default:
		return o.FailCode
	}
}

// TakeOrDefault returns *take, or def when the caller did not send one.
func TakeOrDefault(take *int, def int) int {
	if take == nil {
		return def
	}
	return *take
}
