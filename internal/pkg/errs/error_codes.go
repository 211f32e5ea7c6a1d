/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both inside the
server and in the error events and responses sent to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrUnsupportedEvent indicates that a client sent an event type the server does not handle.
	ErrUnsupportedEvent = 1008
)

// 2xxx: Room and Message Errors
const (
	// ErrRoomNameInvalid indicates an empty or oversized room name.
	ErrRoomNameInvalid = 2101

	// ErrRoomNameExists indicates that a room with the requested name already exists.
	ErrRoomNameExists = 2102

	// ErrRoomNotFound indicates that the named room does not exist (or is being torn down).
	ErrRoomNotFound = 2103

	// ErrRoomPasswordInvalid indicates a wrong password for a protected room.
	ErrRoomPasswordInvalid = 2104

	// ErrMessageContentTooLong indicates that the message body exceeded the maximum length.
	ErrMessageContentTooLong = 2201
)

// 3xxx: User Errors
const (
	// ErrUserNameInvalid indicates an empty or oversized display name.
	ErrUserNameInvalid = 3001

	// ErrUserNameTaken indicates that the display name is already registered.
	ErrUserNameTaken = 3002

	// ErrUserNotFound indicates that no user is registered under the name.
	ErrUserNotFound = 3003
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrStoreUnavailable indicates a transient persistence failure.
	ErrStoreUnavailable = 5001
)
