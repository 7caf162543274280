package database

import "errors"

var (
	// ErrTxClosed is returned when a transaction is used after Update or View returned.
	ErrTxClosed = errors.New("transaction is closed")
	// ErrReadOnly is returned when a read transaction tries to change a record.
	ErrReadOnly = errors.New("transaction is read only")
	// ErrRecordDeleted is returned when a record deleted in the transaction is used.
	ErrRecordDeleted = errors.New("record was deleted")
	// ErrInvalidCluster is returned for a negative cluster id.
	ErrInvalidCluster = errors.New("invalid cluster")
	// ErrInvalidField is returned for an empty field name.
	ErrInvalidField = errors.New("invalid field name")
	// ErrFieldIsBag is returned when a scalar is assigned to a link bag field.
	ErrFieldIsBag = errors.New("field holds a link bag")
	// ErrBagInUse is returned when a bag of one field is assigned to another field.
	ErrBagInUse = errors.New("link bag is held by another field")
	// ErrUnsupportedValue is returned for field values other than strings, numbers and booleans.
	ErrUnsupportedValue = errors.New("unsupported field value")
)
