package asset

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidCacheName = errors.New("invalid cache name")

// CacheName identifies one versioned cache store, rendered as "<prefix>-<version>".
type CacheName struct {
	Prefix  string `json:"prefix"`
	Version string `json:"version"`
}

func NewCacheName(prefix, version string) (CacheName, error) {
	prefix = strings.TrimSpace(prefix)
	version = strings.TrimSpace(version)
	if prefix == "" || version == "" {
		return CacheName{}, fmt.Errorf("%w: prefix and version are required", ErrInvalidCacheName)
	}
	if strings.Contains(version, "-") {
		return CacheName{}, fmt.Errorf("%w: version %q must not contain '-'", ErrInvalidCacheName, version)
	}
	return CacheName{Prefix: prefix, Version: version}, nil
}

// ParseCacheName splits a stored name at its last '-'.
func ParseCacheName(name string) (CacheName, error) {
	i := strings.LastIndex(name, "-")
	if i <= 0 || i == len(name)-1 {
		return CacheName{}, fmt.Errorf("%w: %q has no version tag", ErrInvalidCacheName, name)
	}
	return CacheName{Prefix: name[:i], Version: name[i+1:]}, nil
}

func (n CacheName) String() string {
	return n.Prefix + "-" + n.Version
}

// IsCurrent reports whether a stored cache name equals this one exactly.
func (n CacheName) IsCurrent(stored string) bool {
	return stored == n.String()
}
