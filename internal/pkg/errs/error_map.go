package errs

import "net/http"

// errorMap holds the template for every application error code: the client
// message, the HTTP status and the taxonomy kind.
var errorMap = map[int]CustomError{
	// 1xxx
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest, Kind: KindInvalidInput},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType, Kind: KindInvalidInput},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Malformed JSON body.", Status: http.StatusBadRequest, Kind: KindInvalidInput},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest, Kind: KindInvalidInput},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests, Kind: KindInvalidInput},
	ErrUnsupportedEvent:     {Code: ErrUnsupportedEvent, Message: "Unsupported event type %q.", Status: http.StatusBadRequest, Kind: KindInvalidInput},

	// 2xxx
	ErrRoomNameInvalid:       {Code: ErrRoomNameInvalid, Message: "Room name is required and must be at most %d bytes.", Status: http.StatusBadRequest, Kind: KindInvalidInput},
	ErrRoomNameExists:        {Code: ErrRoomNameExists, Message: "A room with this name already exists.", Status: http.StatusConflict, Kind: KindConflict},
	ErrRoomNotFound:          {Code: ErrRoomNotFound, Message: "Room not found.", Status: http.StatusNotFound, Kind: KindNotFound},
	ErrRoomPasswordInvalid:   {Code: ErrRoomPasswordInvalid, Message: "Wrong room password.", Status: http.StatusForbidden, Kind: KindUnauthorized},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long.", Status: http.StatusBadRequest, Kind: KindInvalidInput},

	// 3xxx
	ErrUserNameInvalid: {Code: ErrUserNameInvalid, Message: "Display name is required and must be at most %d bytes.", Status: http.StatusBadRequest, Kind: KindInvalidInput},
	ErrUserNameTaken:   {Code: ErrUserNameTaken, Message: "Display name is already taken.", Status: http.StatusConflict, Kind: KindConflict},
	ErrUserNotFound:    {Code: ErrUserNotFound, Message: "User not found.", Status: http.StatusNotFound, Kind: KindNotFound},

	// 5xxx
	ErrUnknown:          {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError, Kind: KindInternal},
	ErrStoreUnavailable: {Code: ErrStoreUnavailable, Message: "Storage is temporarily unavailable. Please try again.", Status: http.StatusServiceUnavailable, Kind: KindStoreUnavailable},
}
