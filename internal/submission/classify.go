package submission

import (
	"errors"
	"fmt"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

// User-facing texts.
const (
	MsgAuthConflict     = "There was a conflict in your authentication state! Please login again first."
	MsgUploadFailed     = "Image upload failed! Please try again."
	MsgDeadlineRequired = "Resolving date (deadline) is required"
	MsgSessionExpired   = "Your login session seems to be invalid or expired. Please login again..."
	MsgInvalidInput     = "Invalid Input! "
	MsgUnexpected       = "An unexpected error occurred"
	MsgCreated          = "Your prediction market has been created successfully!"

	StateUploading = "Uploading the image..."
	StateCreating  = "Creating the market..."
	StateSucceeded = "Market created successfully!"
	StateFailed    = "Failed to create market"
)

// Kind is the failure category a submission error falls into.
type Kind int

const (
	KindPrecondition Kind = iota
	KindAuthExpired
	KindValidationException
	KindRemote
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindAuthExpired:
		return "auth_expired"
	case KindValidationException:
		return "validation_exception"
	case KindRemote:
		return "remote"
	default:
		return "transport"
	}
}

// Classification is the user-facing reading of a failure.
type Classification struct {
	Kind     Kind
	Messages []string
	// Logout is set when the session must be dropped.
	Logout bool
}

// Classify maps an error to messages. Checks run in priority order: local
// precondition, 401, 400 validation exception, other HTTP error, anything
// else.
func Classify(err error) Classification {
	var (
		pre *domain.PreconditionError
		val *domain.ValidationError
		re  *domain.RemoteError
	)
	switch {
	case errors.As(err, &pre):
		return Classification{Kind: KindPrecondition, Messages: []string{pre.Message}}
	case errors.As(err, &val):
		return Classification{Kind: KindPrecondition, Messages: []string{val.Message}}
	case errors.As(err, &re) && re.Unauthorized():
		return Classification{Kind: KindAuthExpired, Messages: []string{MsgSessionExpired}, Logout: true}
	case re != nil && re.ValidationException():
		msgs := []string{MsgInvalidInput}
		for _, f := range re.Fields {
			msgs = append(msgs, fmt.Sprintf("\n* %s: %s", f.Field, f.Issue))
		}
		return Classification{Kind: KindValidationException, Messages: msgs}
	case re != nil:
		msg := re.Message
		if msg == "" {
			msg = re.Error()
		}
		if msg == "" {
			msg = MsgUnexpected
		}
		return Classification{Kind: KindRemote, Messages: []string{msg}}
	}

	return Classification{Kind: KindTransport, Messages: []string{transportMessage(err)}}
}

// transportMessage is the innermost non-empty message of err's wrap chain.
// Package prefixes and the request URL added on the way up stay in the log.
func transportMessage(err error) string {
	msg := MsgUnexpected
	for ; err != nil; err = errors.Unwrap(err) {
		if s := err.Error(); s != "" {
			msg = s
		}
	}
	return msg
}
