package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// currentZone returns the system time zone under its IANA name when it can
// be determined, so that log messages name it. It falls back to time.Local.
func currentZone() *time.Location {
	if tz, ok := os.LookupEnv("TZ"); ok {
		if loc, err := time.LoadLocation(strings.TrimPrefix(tz, ":")); err == nil && tz != "" {
			return loc
		}
		return time.Local
	}
	target, err := filepath.EvalSymlinks("/etc/localtime")
	if err != nil {
		return time.Local
	}
	_, name, ok := strings.Cut(filepath.ToSlash(target), "zoneinfo/")
	if !ok {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}
