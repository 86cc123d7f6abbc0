package directline

import "errors"

// Failure classes surfaced to the dispatcher. The client and relay never
// recover locally; callers classify with errors.Is.
var (
	// ErrAcquireToken covers token endpoint transport failures, non-2xx
	// statuses, and responses missing the token field.
	ErrAcquireToken = errors.New("directline: acquire token")
	// ErrOpenConversation covers the same conditions for the
	// conversation-open endpoint.
	ErrOpenConversation = errors.New("directline: open conversation")
	// ErrSendActivity covers failures posting a message activity.
	ErrSendActivity = errors.New("directline: send activity")
	// ErrPollActivities covers failures reading the activity stream.
	ErrPollActivities = errors.New("directline: poll activities")
)
