package sync

import "fmt"

// ConfigurationError indicates an invalid parameter shape or a failed
// audience preflight. It is fatal and is raised before any row is processed.
type ConfigurationError struct {
	Cause error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Cause)
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

// ConnectionError indicates the source database was unreachable or rejected
// the configured credentials during extraction. Fatal.
type ConnectionError struct {
	Server string
	Cause  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to read from sql server %s: %v", e.Server, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// NoDataError indicates the extraction query succeeded but returned zero
// rows. An empty source table is treated as a probable misconfiguration
// rather than a valid "nothing to sync" state, so this is fatal.
type NoDataError struct {
	Schema string
	Table  string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no rows found in %s.%s", e.Schema, e.Table)
}
