// Package stage defines the contract pipeline stages implement and the
// ordered provider chain each stage uses to degrade from its preferred
// generator to cheaper fallbacks.
package stage
