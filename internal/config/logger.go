package config

import (
	"io"

	"tweet-cleaner/pkg/log"
	"tweet-cleaner/pkg/log/transporters"
)

// Logger builds the process logger writing JSON lines to w, plus the log
// file when one is configured.
func (c *Config) Logger(w io.Writer) (*log.Logger, error) {
	ts := []log.Transporter{transporters.NewStdoutWithWriter(w)}
	if c.Log.File != "" {
		f, err := transporters.NewFile(c.Log.File)
		if err != nil {
			return nil, err
		}
		ts = append(ts, f)
	}
	return log.New(c.LogLevel(), ts...), nil
}
