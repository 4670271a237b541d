package vfs

import "errors"

// ErrReadOnly is returned when a Shared -> Reserved request is made on a
// File opened read-only.
var ErrReadOnly = errors.New("vfs: file is opened read-only")
