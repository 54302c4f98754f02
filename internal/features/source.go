package features

import "os"

// Source supplies segmentation settings at evaluation time. Lookups happen on
// every evaluation, so a source backed by mutable configuration lets operators
// adjust segments without restarting the process.
type Source interface {
	Get(key string) string
}

var _ Source = EnvSource{}

// EnvSource reads segmentation settings from environment variables.
type EnvSource struct{}

func (EnvSource) Get(key string) string {
	return os.Getenv(key)
}

// MapSource is a fixed in-memory source, mostly for tests.
type MapSource map[string]string

func (m MapSource) Get(key string) string {
	return m[key]
}
