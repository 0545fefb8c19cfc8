package settingssync

import (
	"errors"
	"fmt"

	"biolink/internal/apiclient"
	"biolink/models"
)

// ErrSaveInProgress is returned by Save while another save of the same engine
// has not completed.
var ErrSaveInProgress = errors.New("a save is already in progress")

// ErrReadOnlyField is returned by SetField for keys only the server changes.
var ErrReadOnlyField = errors.New("field is read-only")

const saveFallbackMessage = "Failed to save settings"

type LoadErrorKind int

const (
	NotAuthenticated LoadErrorKind = iota + 1
	NetworkFailure
	ServerError
)

func (k LoadErrorKind) String() string {
	switch k {
	case NotAuthenticated:
		return "not authenticated"
	case NetworkFailure:
		return "network failure"
	case ServerError:
		return "server error"
	}
	return "unknown"
}

// LoadError is returned by Load. The draft is left untouched.
type LoadError struct {
	Kind    LoadErrorKind
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("load settings: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("load settings: %s: %v", e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

type SaveErrorKind int

const (
	ValidationBlocked SaveErrorKind = iota + 1
	Unauthorized
	ServerRejected
	SaveNetworkFailure
)

func (k SaveErrorKind) String() string {
	switch k {
	case ValidationBlocked:
		return "validation blocked"
	case Unauthorized:
		return "unauthorized"
	case ServerRejected:
		return "server rejected"
	case SaveNetworkFailure:
		return "network failure"
	}
	return "unknown"
}

// SaveError is returned by Save and PersistAudio. Errors is set for
// ValidationBlocked, and for ServerRejected when the server named the
// offending fields. The draft is left untouched so the caller can retry.
type SaveError struct {
	Kind    SaveErrorKind
	Message string
	Errors  models.ValidationErrors
	Err     error
}

func (e *SaveError) Error() string {
	if e.Kind == ValidationBlocked || len(e.Errors) > 0 {
		return fmt.Sprintf("save settings: %s: %d invalid field(s)", e.Kind, len(e.Errors))
	}
	return fmt.Sprintf("save settings: %s: %s", e.Kind, e.Message)
}

func (e *SaveError) Unwrap() error { return e.Err }

func loadErrorFrom(err error) *LoadError {
	switch apiclient.KindOf(err) {
	case apiclient.KindUnauthorized:
		return &LoadError{Kind: NotAuthenticated, Message: apiclient.MessageOf(err), Err: err}
	case apiclient.KindRejected, apiclient.KindMalformed:
		return &LoadError{Kind: ServerError, Message: apiclient.MessageOf(err), Err: err}
	}
	if errors.Is(err, models.ErrMalformedSettings) {
		return &LoadError{Kind: ServerError, Err: err}
	}
	return &LoadError{Kind: NetworkFailure, Err: err}
}

func saveErrorFrom(err error) *SaveError {
	msg := apiclient.MessageOf(err)
	if msg == "" {
		msg = saveFallbackMessage
	}
	switch apiclient.KindOf(err) {
	case apiclient.KindUnauthorized:
		return &SaveError{Kind: Unauthorized, Message: msg, Err: err}
	case apiclient.KindRejected, apiclient.KindMalformed:
		return &SaveError{Kind: ServerRejected, Message: msg, Errors: fieldErrors(apiclient.FieldErrorsOf(err)), Err: err}
	}
	return &SaveError{Kind: SaveNetworkFailure, Message: msg, Err: err}
}

// fieldErrors maps wire names back to client keys. Names the registry does
// not know are kept as sent.
func fieldErrors(wire map[string]string) models.ValidationErrors {
	if len(wire) == 0 {
		return nil
	}
	out := make(models.ValidationErrors, len(wire))
	for name, msg := range wire {
		if f, ok := models.LookupWireField(name); ok {
			name = f.Key
		}
		out[name] = msg
	}
	return out
}
