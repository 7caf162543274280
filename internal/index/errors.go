package index

import "errors"

var (
	// ErrIndexExists is returned when an index name is defined twice.
	ErrIndexExists = errors.New("index already exists")
	// ErrIndexNotFound is returned for an undefined index name.
	ErrIndexNotFound = errors.New("index not found")
	// ErrInvalidDefinition is returned for an index without a name, class or field.
	ErrInvalidDefinition = errors.New("invalid index definition")
	// ErrKeyArity is returned when a lookup does not give one value per field.
	ErrKeyArity = errors.New("index key does not match the index fields")
)
