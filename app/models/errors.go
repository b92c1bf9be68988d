package models

import "errors"

var ErrImmutableVersion = errors.New("project versions are immutable")
