package api

import "errors"

// ErrArchiveRequired is returned when a server is created without an archive.
var ErrArchiveRequired = errors.New("archive required")
