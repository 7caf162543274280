package service

import (
	"errors"

	"github.com/emrgen/linkstore/internal/database"
	"github.com/emrgen/linkstore/internal/index"
	"github.com/emrgen/linkstore/internal/linkbag"
	"github.com/emrgen/linkstore/internal/rid"
	"github.com/emrgen/linkstore/internal/store"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrNotABag is returned when a link operation names a scalar field.
	ErrNotABag = errors.New("field does not hold links")
)

// toStatus maps domain errors to grpc status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, store.ErrRecordNotFound),
		errors.Is(err, store.ErrTreeNotFound),
		errors.Is(err, index.ErrIndexNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, rid.ErrInvalidRID),
		errors.Is(err, database.ErrUnsupportedValue),
		errors.Is(err, database.ErrInvalidField),
		errors.Is(err, database.ErrInvalidCluster),
		errors.Is(err, database.ErrFieldIsBag),
		errors.Is(err, index.ErrInvalidDefinition),
		errors.Is(err, index.ErrKeyArity),
		errors.Is(err, ErrNotABag):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, index.ErrIndexExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, linkbag.ErrOwnerDetached),
		errors.Is(err, linkbag.ErrBagReleased),
		errors.Is(err, linkbag.ErrOwnerConflict),
		errors.Is(err, database.ErrRecordDeleted):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, linkbag.ErrInvalidCheckpoint),
		errors.Is(err, linkbag.ErrTimelineMismatch):
		return status.Error(codes.Aborted, err.Error())
	}

	return status.Error(codes.Internal, err.Error())
}
