package control

import (
	"context"
	"errors"

	"github.com/signalsfoundry/engagement-simulator/internal/sim/session"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToStatusError maps session errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, session.ErrUnknownTarget),
		errors.Is(err, session.ErrUnknownEnvironment),
		errors.Is(err, session.ErrUnknownScenario),
		errors.Is(err, session.ErrOutOfRange):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, session.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
