package logging

import (
	"log/slog"
)

// Options configures Build.
type Options struct {
	FilePath   string
	MaxBackups int
	Level      slog.Level
	Mail       MailConfig
}

// Build constructs the root logger: a rotating file handler wrapped in an
// SMTP handler, at the configured level. Returns a *Registry ready to hand
// out namespaced child loggers.
func Build(opts Options) (*Registry, error) {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	rotating, err := NewRotatingFileHandler(opts.FilePath, opts.MaxBackups, handlerOpts)
	if err != nil {
		return nil, err
	}

	var handler slog.Handler = rotating
	handler = NewSMTPHandler(handler, opts.Mail)

	root := slog.New(handler)
	return NewRegistry(root), nil
}
