package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	stdout  io.Writer
	stderr  io.Writer
	issues  []string
	runID   string
	limit   int
	version string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithOutput sets where reports (stdout) and logs (stderr) are written.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *application) {
		a.stdout = stdout
		a.stderr = stderr
	}
}

// WithIssues restricts the command to the given issue identifiers.
func WithIssues(issues ...string) Option {
	return func(a *application) {
		a.issues = issues
	}
}

// WithRunID selects one recorded run for History.
func WithRunID(id string) Option {
	return func(a *application) {
		a.runID = id
	}
}

// WithLimit caps the number of runs History prints.
func WithLimit(n int) Option {
	return func(a *application) {
		a.limit = n
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}
