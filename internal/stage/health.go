package stage

import "strings"

// Health summarizes whether a stage can run and which providers it will try.
type Health struct {
	Name      string
	Ready     bool
	Degraded  bool
	Detail    string
	Providers []string
}

// Healthy reports a stage whose preferred provider is available.
func Healthy(name string, providers ...string) Health {
	return Health{Name: name, Ready: true, Providers: providers}
}

// Degraded reports a stage that will run, but only on a fallback provider.
func Degraded(name, detail string, providers ...string) Health {
	return Health{Name: name, Ready: true, Degraded: true, Detail: strings.TrimSpace(detail), Providers: providers}
}

// Unhealthy reports a stage that cannot run at all.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: strings.TrimSpace(detail)}
}
