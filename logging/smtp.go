package logging

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"runtime"
	"strings"
	"time"
)

// MailConfig describes where an SMTPHandler delivers error/critical records.
type MailConfig struct {
	Server   string // host:port
	From     string
	To       []string
	Subject  string
	Username string
	Password string
}

// SMTPHandler wraps an inner slog.Handler and, in addition to delegating
// every record to it, emails records at slog.LevelError or above. One email
// per record, subject suffixed with the severity marker, matching the
// original daemon's "ERROR - ..."/"CRITICAL - ..." convention.
type SMTPHandler struct {
	inner slog.Handler
	cfg   MailConfig
	send  func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPHandler builds a handler around inner. If cfg.Server is empty,
// email delivery is a no-op and only inner is ever invoked.
func NewSMTPHandler(inner slog.Handler, cfg MailConfig) *SMTPHandler {
	return &SMTPHandler{inner: inner, cfg: cfg, send: smtp.SendMail}
}

// Enabled delegates to the inner handler.
func (h *SMTPHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle delegates to the inner handler, then emails if the level warrants it.
func (h *SMTPHandler) Handle(ctx context.Context, record slog.Record) error {
	if err := h.inner.Handle(ctx, record); err != nil {
		return err
	}
	if record.Level >= slog.LevelError && h.cfg.Server != "" && len(h.cfg.To) > 0 {
		h.deliver(record)
	}
	return nil
}

func (h *SMTPHandler) deliver(record slog.Record) {
	severity := "ERROR"
	if record.Level >= LevelCritical {
		severity = "CRITICAL"
	}

	var loggerName, source string
	record.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "logger":
			loggerName = a.Value.String()
		case "component":
			if loggerName == "" {
				loggerName = a.Value.String()
			}
		}
		return true
	})
	if record.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
		source = fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function)
	}

	subject := h.cfg.Subject
	if subject == "" {
		subject = "shotgunEventDaemon"
	}
	subject = fmt.Sprintf("%s %s - %s", severity, subject, record.Message)

	var body strings.Builder
	fmt.Fprintf(&body, "Time: %s\n", record.Time.Format(time.RFC3339))
	fmt.Fprintf(&body, "Logger: %s\n", loggerName)
	fmt.Fprintf(&body, "Source: %s\n", source)
	fmt.Fprintf(&body, "Message: %s\n\n", record.Message)

	msg := fmt.Sprintf("Subject: %s\r\n\r\n%s", subject, body.String())

	var auth smtp.Auth
	if h.cfg.Username != "" {
		host := h.cfg.Server
		if idx := strings.IndexByte(host, ':'); idx >= 0 {
			host = host[:idx]
		}
		auth = smtp.PlainAuth("", h.cfg.Username, h.cfg.Password, host)
	}

	// Best-effort: a mail delivery failure must never take down the
	// logging path that reported the original error.
	_ = h.send(h.cfg.Server, auth, h.cfg.From, h.cfg.To, []byte(msg))
}

// WithAttrs delegates to the inner handler.
func (h *SMTPHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SMTPHandler{inner: h.inner.WithAttrs(attrs), cfg: h.cfg, send: h.send}
}

// WithGroup delegates to the inner handler.
func (h *SMTPHandler) WithGroup(name string) slog.Handler {
	return &SMTPHandler{inner: h.inner.WithGroup(name), cfg: h.cfg, send: h.send}
}

// LevelCritical is a slog level above LevelError for daemon-fatal-ish
// conditions that still don't crash the process (see engine's crash
// isolation policy).
const LevelCritical slog.Level = slog.LevelError + 4
