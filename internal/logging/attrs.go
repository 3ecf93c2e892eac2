package logging

import "log/slog"

// String builds a string attribute; a thin alias kept so call sites read the
// same across the codebase.
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Error records an error message under the conventional key.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// JobID tags a record with the render job it concerns.
func JobID(id string) slog.Attr {
	return slog.String("job_id", id)
}

// ProjectID tags a record with its project.
func ProjectID(id string) slog.Attr {
	return slog.String("project_id", id)
}
