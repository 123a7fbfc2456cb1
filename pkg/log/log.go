// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/walteh/fillswap/pkg/model"
)

// 🎨 Display configuration
const (
	entryIndent = 4  // spaces to indent outcome entries
	nameWidth   = 30 // Base width for layer names
	fileWidth   = 30 // Width for filenames
	statusWidth = 10 // Width for status text
)

// 📦 Batch describes one replacement run for logging
type Batch struct {
	Document string      // Document being modified
	Scope    model.Scope // Scope candidates were taken from
	Total    int         // Number of assignments
}

// 🎯 Logger handles structured logging with console output
type Logger struct {
	zlog        zerolog.Logger
	console     io.Writer
	interactive bool
	mu          sync.Mutex
	current     *Batch
	outcomes    []model.MatchEntry
}

// 🏭 New creates a new logger. Interactive consoles get a live progress bar.
func New(console io.Writer, zlog zerolog.Logger, interactive bool) *Logger {
	return &Logger{
		zlog:        zlog,
		console:     console,
		interactive: interactive,
	}
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context, or a discarding logger
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		return New(io.Discard, zerolog.Nop(), false)
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 formatOutcome formats an outcome for display
func (l *Logger) formatOutcome(o model.MatchEntry) string {
	var symbol rune
	var symbolColor color.Attribute
	switch o.Status {
	case model.StatusReplaced:
		symbol = '✓'
		symbolColor = color.FgGreen
	case model.StatusError:
		symbol = '✗'
		symbolColor = color.FgRed
	case model.StatusMatched:
		symbol = '•'
		symbolColor = color.FgCyan
	default:
		symbol = '-'
		symbolColor = color.FgYellow
	}

	line := fmt.Sprintf("%s%s %s %s %s",
		fmt.Sprintf("%*s", entryIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, o.CandidateName),
		color.New(color.FgBlue).Sprint(fmt.Sprintf("%-*s", fileWidth, o.Filename)),
		fmt.Sprintf("%-*s", statusWidth, o.Status))

	if o.Error != "" {
		line += color.New(color.FgRed).Sprint(o.Error)
	}
	return strings.TrimRight(line, " ")
}

// 📝 LogOutcome logs one replacement outcome
func (l *Logger) LogOutcome(ctx context.Context, o model.MatchEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.outcomes = append(l.outcomes, o)

	fmt.Fprintln(l.console, l.formatOutcome(o))

	ev := l.zlog.Info()
	if o.Status == model.StatusError {
		ev = l.zlog.Warn()
	}
	ev.Str("layer_id", o.CandidateID).
		Str("layer", o.CandidateName).
		Str("file", o.Filename).
		Str("status", string(o.Status)).
		Str("error", o.Error).
		Msg("replacement outcome")
}

// 📝 StartBatch starts a new replacement batch
func (l *Logger) StartBatch(ctx context.Context, b Batch) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.current = &b
	l.outcomes = nil

	fmt.Fprintf(l.console, "[replacing in %s]\n",
		color.New(color.FgCyan).Sprint(b.Document))

	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(fmt.Sprintf("%d assignments", b.Total)),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprint(string(b.Scope)))

	l.zlog.Info().
		Str("document", b.Document).
		Str("scope", string(b.Scope)).
		Int("total", b.Total).
		Msg("starting replacement batch")
}

// 📝 EndBatch ends the current batch and prints its summary
func (l *Logger) EndBatch(ctx context.Context) model.Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	summary := model.Summarize(l.outcomes)
	if l.current == nil {
		return summary
	}

	msg := fmt.Sprintf("%d replaced, %d failed", summary.Replaced, summary.Errored)
	if summary.Errored > 0 {
		fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	} else {
		fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	}

	l.zlog.Info().
		Str("document", l.current.Document).
		Int("replaced", summary.Replaced).
		Int("errored", summary.Errored).
		Msg("replacement batch complete")

	l.current = nil
	l.outcomes = nil
	return summary
}

// ⏳ Progress returns a callback for replacement progress. Call the returned stop
// function once the batch is over.
func (l *Logger) Progress(total int) (func(model.Progress), func()) {
	if !l.interactive || total == 0 {
		return func(p model.Progress) {
			l.mu.Lock()
			defer l.mu.Unlock()
			fmt.Fprintf(l.console, "%s %s\n",
				color.New(color.Faint).Sprintf("[%d/%d]", p.Completed, p.Total),
				p.Current)
		}, func() {}
	}

	bar, err := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle("replacing").
		WithWriter(l.console).
		Start()
	if err != nil {
		l.zlog.Debug().Err(err).Msg("starting progress bar")
		return func(model.Progress) {}, func() {}
	}

	return func(p model.Progress) {
			l.mu.Lock()
			defer l.mu.Unlock()
			bar.UpdateTitle(p.Current)
			bar.Add(p.Completed - bar.Current)
		}, func() {
			_, _ = bar.Stop()
		}
}

// 👀 Preview prints a preview as tables of matches and leftovers
func (l *Logger) Preview(ctx context.Context, p model.PreviewResult) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.console, "%s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprintf("%d of %d files matched across %d layers", len(p.Matches), p.TotalSources, p.TotalCandidates))

	if len(p.Matches) > 0 {
		rows := [][]string{{"Layer", "File", "Layer ID"}}
		for _, m := range p.Matches {
			rows = append(rows, []string{m.CandidateName, m.Filename, m.CandidateID})
		}
		l.table(rows)
	}

	for _, f := range p.UnmatchedFiles {
		fmt.Fprintf(l.console, "%*s%s %s\n", entryIndent, "", color.New(color.FgYellow).Sprint("?"), f)
	}

	if len(p.UnmatchedCandidates) > 0 {
		rows := [][]string{{"Unmatched layer with image", "Path"}}
		for _, c := range p.UnmatchedCandidates {
			rows = append(rows, []string{c.Name, c.ParentPath})
		}
		l.table(rows)
	}

	l.zlog.Info().
		Int("matched", len(p.Matches)).
		Int("unmatched_files", len(p.UnmatchedFiles)).
		Int("unmatched_layers", len(p.UnmatchedCandidates)).
		Msg("preview")
}

// 🧱 Candidates prints a candidate listing
func (l *Logger) Candidates(ctx context.Context, set model.CandidateSet) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows := [][]string{{"ID", "Name", "Type", "Image", "Path"}}
	for _, c := range set.Items {
		img := ""
		if c.HasImageFill {
			img = "yes"
		}
		rows = append(rows, []string{c.ID, c.Name, c.Type, img, c.ParentPath})
	}
	l.table(rows)
	fmt.Fprintf(l.console, "%d layers in %s\n", len(set.Items), set.Scope)
}

func (l *Logger) table(rows [][]string) {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		l.zlog.Debug().Err(err).Msg("rendering table")
		return
	}
	fmt.Fprintln(l.console, out)
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("fillswap")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}
