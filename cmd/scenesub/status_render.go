package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = map[statusKind]struct {
	label  string
	colors text.Colors
}{
	statusInfo:  {"INFO", text.Colors{text.FgBlue}},
	statusOK:    {"OK", text.Colors{text.FgGreen}},
	statusWarn:  {"WARN", text.Colors{text.FgYellow}},
	statusError: {"ERROR", text.Colors{text.FgRed, text.Bold}},
}

const statusLabelWidth = 20

// statusReport accumulates the sections printed by `scenesub status` and
// counts error lines so the command can fail after printing everything.
type statusReport struct {
	colorize bool
	lines    []string
	errors   int
}

func newStatusReport(w io.Writer) *statusReport {
	return &statusReport{colorize: shouldColorize(w)}
}

func (r *statusReport) section(title string) {
	if len(r.lines) > 0 {
		r.lines = append(r.lines, "")
	}
	heading := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(heading))
	r.lines = append(r.lines, r.paint(text.Colors{text.FgBlue}, heading), r.paint(text.Colors{text.FgBlue}, rule))
}

func (r *statusReport) line(label string, kind statusKind, message string) {
	if kind == statusError {
		r.errors++
	}
	style := statusStyles[kind]
	tag := "[" + style.label + "]"
	if message != "" {
		tag += " " + message
	}
	r.lines = append(r.lines, r.paint(style.colors, fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", tag)))
}

// check renders a pass/fail result; failures use failKind.
func (r *statusReport) check(label string, passed bool, failKind statusKind, message string) {
	kind := failKind
	if passed {
		kind = statusOK
	}
	r.line(label, kind, message)
}

func (r *statusReport) paint(colors text.Colors, s string) string {
	if !r.colorize {
		return s
	}
	return colors.Sprint(s)
}

func (r *statusReport) String() string {
	return strings.Join(r.lines, "\n")
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
