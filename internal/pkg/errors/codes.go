package errors

import "net/http"

var (
	ErrUnknownQueue = New(
		"UNKNOWN_QUEUE",
		"Unknown queue",
		http.StatusNotFound,
	)

	ErrInvalidCoordinates = New(
		"INVALID_COORDINATES",
		"Invalid coordinates provided",
		http.StatusBadRequest,
	)

	ErrOutsideZone = New(
		"OUTSIDE_ZONE",
		"You are not inside the zone of this queue",
		http.StatusConflict,
	)

	ErrNotInAirportQueue = New(
		"NOT_IN_AIRPORT_QUEUE",
		"Check in to the Reptér queue before joining Emirates",
		http.StatusConflict,
	)

	ErrNothingToUndo = New(
		"NOTHING_TO_UNDO",
		"There is no checkout to undo for this queue",
		http.StatusConflict,
	)

	ErrNotInQueue = New(
		"NOT_IN_QUEUE",
		"You are not in this queue",
		http.StatusConflict,
	)

	ErrForbidden = New(
		"FORBIDDEN",
		"Operation not permitted",
		http.StatusForbidden,
	)

	ErrUnauthorized = New(
		"UNAUTHORIZED",
		"Missing or invalid access token",
		http.StatusUnauthorized,
	)

	ErrSessionNotFound = New(
		"SESSION_NOT_FOUND",
		"No active device session",
		http.StatusNotFound,
	)

	ErrPermissionDenied = New(
		"LOCATION_PERMISSION_DENIED",
		"Location permission was not granted",
		http.StatusPreconditionFailed,
	)

	ErrInvalidNoteIndex = New(
		"INVALID_NOTE_INDEX",
		"Airport order index out of range",
		http.StatusBadRequest,
	)

	ErrStoreError = New(
		"STORE_ERROR",
		"Queue store operation failed",
		http.StatusInternalServerError,
	)

	ErrInvalidRequest = New(
		"INVALID_REQUEST",
		"Invalid request parameters",
		http.StatusBadRequest,
	)

	ErrInternalServer = New(
		"INTERNAL_SERVER_ERROR",
		"Internal server error",
		http.StatusInternalServerError,
	)
)
