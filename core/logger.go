package core

// Logger is the application logger. Args are usually an error, a map[string]interface{} of extra data
// and/or an Identity (the user the log entry relates to).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Identity is the person a log entry or an action is attributed to.
type Identity struct {
	ID       string
	Username string
	Email    string
}
