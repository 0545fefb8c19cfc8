package upload

import (
	"errors"
	"fmt"

	"biolink/models"
)

var (
	ErrUnknownAssetType = errors.New("unknown asset type")
	ErrUploadInProgress = errors.New("an upload of this asset type is already in progress")
)

const uploadFallbackMessage = "Failed to upload file"

type ErrorKind int

const (
	TooLarge ErrorKind = iota + 1
	UnsupportedType
	UploadFailed
)

func (k ErrorKind) String() string {
	switch k {
	case TooLarge:
		return "too large"
	case UnsupportedType:
		return "unsupported type"
	case UploadFailed:
		return "upload failed"
	}
	return "unknown"
}

// Error reports a rejected or failed upload. The draft is never changed when
// one is returned.
type Error struct {
	Kind      ErrorKind
	AssetType models.AssetType
	Message   string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upload %s: %s: %s", e.AssetType, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// AutosaveError is returned together with a valid URL when the upload
// succeeded but persisting the audio settings did not. The draft already holds
// the new URL.
type AutosaveError struct {
	URL string
	Err error
}

func (e *AutosaveError) Error() string {
	return fmt.Sprintf("autosave after upload of %s: %v", e.URL, e.Err)
}

func (e *AutosaveError) Unwrap() error { return e.Err }
