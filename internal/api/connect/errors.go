package connect

import (
	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"

	"github.com/osa030/shufflebox/internal/app/session"
	"github.com/osa030/shufflebox/internal/domain/shuffle"
)

// toConnectError maps application errors to Connect status codes.
func toConnectError(err error) error {
	var code connect.Code
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, session.ErrEndOfPlaylist), errors.Is(err, session.ErrNoPrevious):
		code = connect.CodeOutOfRange
	case errors.Is(err, session.ErrNothingPlaying):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, session.ErrSourceInUse):
		code = connect.CodeAlreadyExists
	case errors.Is(err, shuffle.ErrInvalidConstruction),
		errors.Is(err, session.ErrUnknownSource),
		errors.Is(err, session.ErrEmptySource),
		errors.Is(err, session.ErrInvalidRepeatMode):
		code = connect.CodeInvalidArgument
	default:
		code = connect.CodeInternal
	}
	return connect.NewError(code, err)
}
