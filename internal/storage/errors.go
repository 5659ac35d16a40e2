package storage

import (
	"errors"
	"fmt"
)

// ErrObjectExists is returned when an upload would overwrite an object.
var ErrObjectExists = errors.New("object already exists")

// StorageError reports a failed object upload.
type StorageError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s/%s: %v", e.Bucket, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// RecordError reports a failed record write.
type RecordError struct {
	Op  string
	Err error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %s: %v", e.Op, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
