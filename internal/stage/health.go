package stage

// Health reports whether a pipeline stage can currently do useful work,
// typically whether its external tool or API key is reachable. Unready
// stages still run; Detail surfaces in the daemon status summary so the
// operator can see what is missing.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy marks the named stage ready.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy marks the named stage not ready along with what it is missing.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
