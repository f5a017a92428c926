package storage

import (
	"fmt"
	"strings"
)

// Scheme identifies a storage backend.
type Scheme string

const (
	SchemeS3    Scheme = "s3"
	SchemeMinIO Scheme = "minio"
	SchemeRedis Scheme = "redis"
	SchemeLocal Scheme = "file"
	SchemeMem   Scheme = "mem"
)

// SchemeFrom parses a scheme name. It accepts the scheme constants plus a
// few aliases used in configuration files.
func SchemeFrom(name string) (Scheme, error) {
	switch strings.ToLower(name) {
	case "s3":
		return SchemeS3, nil
	case "minio":
		return SchemeMinIO, nil
	case "redis":
		return SchemeRedis, nil
	case "file", "local":
		return SchemeLocal, nil
	case "mem", "memory":
		return SchemeMem, nil
	default:
		return "", fmt.Errorf("unknown storage scheme %q", name)
	}
}

// Storage is the read-only view of a storage backend the plan compiler
// needs: enumerating the files under a path prefix. Writing is the worker
// runtime's concern.
type Storage interface {
	Scheme() Scheme
	// ListPaths returns the full paths of the files under prefix, in
	// lexicographic order. The order is part of the compiler's determinism
	// contract.
	ListPaths(prefix string) ([]string, error)
}
