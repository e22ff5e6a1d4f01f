// Package preflight checks that a lesson run can start: the output
// directory is writable, enough disk space is free, and the configured
// generators answer. A failed network check only means that generator's
// fallbacks will be used.
package preflight
