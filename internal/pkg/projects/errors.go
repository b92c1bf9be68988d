package projects

import "errors"

var (
	ErrProjectNotFound   = errors.New("project not found")
	ErrForbidden         = errors.New("project belongs to another user")
	ErrNameRequired      = errors.New("project name is required")
	ErrInvalidVisibility = errors.New("invalid visibility")
	ErrInvalidProject    = errors.New("invalid project")
	ErrProjectLimit      = errors.New("project limit reached")
	ErrInvalidSnapshot   = errors.New("invalid snapshot")
	ErrVersionNotFound   = errors.New("version not found")
	// ErrVersionConflict means a concurrent save claimed the next version number twice in a row.
	ErrVersionConflict = errors.New("version conflict")
)
