package jobs

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ValidationError reports a malformed request.
func ValidationError(format string, args ...any) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}

// NotFoundError reports an unknown job.
func NotFoundError(jobID string) error {
	return status.Errorf(codes.NotFound, "job not found: %s", jobID)
}

// IllegalTransitionError reports a status change the lifecycle does not allow.
func IllegalTransitionError(from, to JobStatus) error {
	return status.Errorf(codes.FailedPrecondition, "illegal transition from %s to %s", from, to)
}

// RunnerStartError reports a runner that could not be started.
func RunnerStartError(err error) error {
	return status.Errorf(codes.Unavailable, "failed to start runner: %s", status.Convert(err).Message())
}

// TransportError reports a lost connection to the server.
func TransportError(format string, args ...any) error {
	return status.Errorf(codes.Unavailable, format, args...)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	return status.Code(err) == codes.InvalidArgument
}

// IsRunnerStart reports whether err is a RunnerStartError.
func IsRunnerStart(err error) bool {
	return status.Code(err) == codes.Unavailable
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// IsIllegalTransition reports whether err is an IllegalTransitionError.
func IsIllegalTransition(err error) bool {
	return status.Code(err) == codes.FailedPrecondition
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	return status.Code(err) == codes.Unavailable
}
