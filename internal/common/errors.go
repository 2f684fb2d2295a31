// Package common defines shared constants and sentinel errors used across
// gophchat layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrStoreFailure wraps unexpected persistence failures (connectivity,
	// constraint violations). The boundary layer reports them as 5xx.
	ErrStoreFailure = errors.New("store failure")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// Kind is a stable, machine-readable error identifier.
type Kind string

// Error is a validation or authorization failure returned by the chat core.
// Two errors match under errors.Is when their kinds are equal, so callers can
// compare against the sentinels below even when the message was customized.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Kind: e.Kind, Message: msg}
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Membership errors.
var (
	ErrMissingParticipants    = newError("missing_participants", "at least one participant except you is required")
	ErrMissingIsPrivateFlag   = newError("missing_is_private", "is_private is required")
	ErrSelfParticipation      = newError("self_participation", "you can't add yourself to the chat")
	ErrInvalidPrivateChatSize = newError("invalid_private_chat_size", "you can't add more than 1 user to the private chat")
	ErrUnknownParticipant     = newError("unknown_participant", "participant does not exist")
	ErrChatIsPrivate          = newError("chat_is_private", "this chat is private")
	ErrRequesterNotInChat     = newError("requester_not_in_chat", "you are not a participant of this chat")
	ErrUnknownUser            = newError("unknown_user", "user with such id does not exist")
	ErrAlreadyMember          = newError("already_member", "user is already in this chat")
	ErrMissingUserID          = newError("missing_user_id", "user_id is required")
	ErrTargetNotInChat        = newError("target_not_in_chat", "user is not in this chat")
	ErrUnknownChat            = newError("unknown_chat", "chat with such id does not exist")
)

// Message lifecycle errors.
var (
	ErrMissingFields             = newError("missing_fields", "chat_id and text are required")
	ErrUnknownMessage            = newError("unknown_message", "message with such id does not exist")
	ErrMissingText               = newError("missing_text", "text is required")
	ErrNotSender                 = newError("not_sender", "you can edit only own messages")
	ErrEditWindowExpired         = newError("edit_window_expired", "you can't edit messages older than 30 minutes")
	ErrChatParticipationRequired = newError("chat_participation_required", "you can't see messages in chat if you are not a participant")
)

// Identity errors.
var (
	ErrValidation         = newError("validation_failed", "request validation failed")
	ErrUsernameTaken      = newError("username_taken", "this username has been already registered")
	ErrUnauthenticated    = newError("unauthenticated", "authentication credentials were not provided")
	ErrInvalidCredentials = newError("invalid_credentials", "invalid username or password")
)
