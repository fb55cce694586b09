// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	termTimeFormat = "01-02|15:04:05.000"
	termMsgPad     = 40
	floatFormat    = 'f'
)

type discardHandler struct{}

// DiscardHandler returns a handler that drops every record.
func DiscardHandler() slog.Handler {
	return &discardHandler{}
}

func (h *discardHandler) Handle(_ context.Context, _ slog.Record) error { return nil }
func (h *discardHandler) Enabled(_ context.Context, _ slog.Level) bool  { return false }
func (h *discardHandler) WithGroup(_ string) slog.Handler               { return h }
func (h *discardHandler) WithAttrs(_ []slog.Attr) slog.Handler          { return h }

// TerminalHandler renders records in a human readable single-line form,
// optionally colorized by level.
type TerminalHandler struct {
	mu       sync.Mutex
	wr       io.Writer
	lvl      *slog.LevelVar
	useColor bool
	attrs    []slog.Attr
}

// NewTerminalHandler creates a TerminalHandler writing to wr. Records below
// lvl are suppressed; lvl may be adjusted at runtime.
func NewTerminalHandler(wr io.Writer, lvl *slog.LevelVar, useColor bool) *TerminalHandler {
	return &TerminalHandler{
		wr:       wr,
		lvl:      lvl,
		useColor: useColor,
	}
}

func (h *TerminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.lvl.Level()
}

func (h *TerminalHandler) WithGroup(_ string) slog.Handler {
	panic("not implemented")
}

func (h *TerminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TerminalHandler{
		wr:       h.wr,
		lvl:      h.lvl,
		useColor: h.useColor,
		attrs:    append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *TerminalHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	lvl := LevelString(r.Level)
	if h.useColor {
		if c := levelColor(r.Level); c != 0 {
			fmt.Fprintf(&b, "\x1b[%dm%s\x1b[0m", c, lvl)
		} else {
			b.WriteString(lvl)
		}
	} else {
		b.WriteString(lvl)
	}
	b.WriteByte('[')
	b.WriteString(r.Time.Format(termTimeFormat))
	b.WriteString("] ")
	b.WriteString(r.Message)

	// pad the message so attributes line up across records
	if pad := termMsgPad - len(r.Message); pad > 0 && r.NumAttrs()+len(h.attrs) > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}

	for _, attr := range h.attrs {
		writeAttr(&b, attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		writeAttr(&b, attr)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.wr, b.String())
	return err
}

func levelColor(level slog.Level) int {
	switch {
	case level >= LevelCrit:
		return 35 // magenta
	case level >= LevelError:
		return 31 // red
	case level >= LevelWarn:
		return 33 // yellow
	case level >= LevelInfo:
		return 32 // green
	default:
		return 36 // cyan
	}
}

func writeAttr(b *strings.Builder, attr slog.Attr) {
	b.WriteByte(' ')
	b.WriteString(attr.Key)
	b.WriteByte('=')
	b.WriteString(formatValue(attr.Value))
}

func formatValue(v slog.Value) string {
	v = v.Resolve()
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), floatFormat, 3, 64)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	default:
		s = fmt.Sprintf("%+v", v.Any())
	}
	if needsQuoting(s) {
		return strconv.Quote(s)
	}
	if s == "" {
		return `""`
	}
	return s
}

func needsQuoting(s string) bool {
	for _, r := range s {
		if r <= ' ' || r == '=' || r == '"' {
			return true
		}
	}
	return false
}

// JSONHandler returns a handler emitting one JSON object per record, for
// log shippers.
func JSONHandler(wr io.Writer, lvl *slog.LevelVar) slog.Handler {
	return slog.NewJSONHandler(wr, &slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: replaceLevelName,
	})
}

func replaceLevelName(_ []string, attr slog.Attr) slog.Attr {
	if attr.Key == slog.LevelKey {
		if level, ok := attr.Value.Any().(slog.Level); ok {
			attr.Value = slog.StringValue(LevelString(level))
		}
	}
	return attr
}
