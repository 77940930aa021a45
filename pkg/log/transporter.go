package log

// Transporter is a log destination: stdout, a journal file, etc.
type Transporter interface {
	// Name identifies the transporter in fallback error messages.
	Name() string

	// Write delivers one entry.
	Write(entry Entry) error

	// Close releases resources. Write must not be called afterwards.
	Close() error
}
