// ABOUTME: Colored one-line console rendering of proxy events
// ABOUTME: Status and method pick the colors; body snippets follow on indented req:/res: lines

package proxy

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	dim     = color.New(color.Faint)
	bold    = color.New(color.Bold)
	red     = color.New(color.FgRed)
	green   = color.New(color.FgGreen)
	yellow  = color.New(color.FgYellow)
	cyan    = color.New(color.FgCyan)
	magenta = color.New(color.FgMagenta)
)

// Console writes event lines to w. A nil *Console discards everything.
type Console struct {
	mu        sync.Mutex
	w         io.Writer
	logBodies bool
}

// NewConsole creates a renderer. With logBodies set, request and response
// snippets are printed under the event line.
func NewConsole(w io.Writer, logBodies bool) *Console {
	return &Console{w: w, logBodies: logBodies}
}

// Started prints the event as the call leaves for upstream.
func (c *Console) Started(ev LogEvent) {
	if c == nil {
		return
	}
	lines := []string{FormatEvent(ev)}
	if c.logBodies && ev.ReqSnippet != "" {
		lines = append(lines, dim.Sprint("  req: ")+ev.ReqSnippet)
	}
	c.write(lines)
}

// Finished prints the completed event with its status and duration.
func (c *Console) Finished(ev LogEvent) {
	if c == nil {
		return
	}
	lines := []string{FormatEvent(ev)}
	if c.logBodies && ev.RespSnippet != "" {
		lines = append(lines, dim.Sprint("  res: ")+ev.RespSnippet)
	}
	if ev.Error != "" {
		lines = append(lines, red.Sprint("  error: "+ev.Error))
	}
	c.write(lines)
}

func (c *Console) write(lines []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range lines {
		_, _ = fmt.Fprintln(c.w, l)
	}
}

// FormatEvent renders ev as `[ts] #seq [phase] method tool id=.. status=.. time=..`.
// Empty phase and tool are left out.
func FormatEvent(ev LogEvent) string {
	ts := time.UnixMilli(ev.StartedAt).UTC().Format("2006-01-02T15:04:05.000Z")

	status := "-"
	if ev.Status != 0 {
		status = fmt.Sprint(ev.Status)
	}
	id := "-"
	if len(ev.ID) > 0 && string(ev.ID) != "null" {
		id = strings.Trim(string(ev.ID), `"`)
	}
	method := ev.Method
	if method == "" {
		method = "-"
	}

	parts := []string{
		dim.Sprintf("[%s]", ts),
		bold.Sprintf("#%d", ev.Seq),
	}
	if ev.Phase != "" {
		parts = append(parts, "["+ev.Phase+"]")
	}
	parts = append(parts, methodColor(ev.Method).Sprint(method))
	if ev.Tool != "" {
		parts = append(parts, bold.Sprint(ev.Tool))
	}
	parts = append(parts,
		"id="+id,
		"status="+statusColor(ev.Status).Sprint(status),
		"time="+bold.Sprint(formatDuration(ev)),
	)
	return strings.Join(parts, " ")
}

func statusColor(status int) *color.Color {
	switch {
	case status == 0:
		return yellow
	case status >= 200 && status < 300:
		return green
	case status >= 400:
		return red
	default:
		return cyan
	}
}

func methodColor(method string) *color.Color {
	switch method {
	case "tools/call":
		return cyan
	case "tools/list":
		return magenta
	case "initialize":
		return yellow
	default:
		return dim
	}
}

// formatDuration prints milliseconds below one second and seconds above.
func formatDuration(ev LogEvent) string {
	d, ok := ev.Duration()
	if !ok {
		return "-"
	}
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%d ms", ms)
	}
	return fmt.Sprintf("%.3f s", float64(ms)/1000)
}

// snippet caps s at max characters, marking the cut with " …".
func snippet(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + " …"
}
