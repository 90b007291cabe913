// Package repo provides a generic keyed repository over Neo4j nodes.
package repo

import "errors"

// ErrNotFound is returned by Get when no entity has the requested key.
var ErrNotFound = errors.New("repo: not found")
