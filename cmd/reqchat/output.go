package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kalambet/reqchat/internal/render"
	"github.com/kalambet/reqchat/internal/requirements"
	"github.com/kalambet/reqchat/internal/session"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

// writeRequirements lists every category with its items and ids.
func writeRequirements(w io.Writer, doc requirements.Document) {
	for _, c := range requirements.Categories {
		items := doc.Items(c)
		fmt.Fprintf(w, "%s (%d)\n", colorize(colorBold, render.CategoryLabel(c)), len(items))
		for _, it := range items {
			line := it.Title
			if it.Priority != "" {
				line += " [" + string(it.Priority) + "]"
			}
			fmt.Fprintf(w, "  %s  %s\n", colorize(colorCyan, it.ID), line)
		}
	}
}

func writeSnapshot(w io.Writer, snap session.Snapshot) {
	title := snap.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, title), snap.ID)
	fmt.Fprintf(w, "requirements: %d  architecture: %s", snap.TotalRequirements, snap.ArchitectureStatus)
	if snap.ArchitectureStale {
		fmt.Fprint(w, " (stale)")
	}
	fmt.Fprintln(w)
	writeRequirements(w, snap.Requirements)
}

func writeMessages(w io.Writer, msgs []requirements.ChatMessage) {
	for _, m := range msgs {
		label := colorize(colorGreen, "you")
		if m.Sender == requirements.SenderAssistant {
			label = colorize(colorCyan, "assistant")
		}
		fmt.Fprintf(w, "%s: %s\n", label, m.Content)
	}
}

func writeValidation(w io.Writer, v requirements.ValidationResult) {
	status := colorize(colorGreen, v.OverallStatus)
	if !v.Passed() {
		status = colorize(colorYellow, v.OverallStatus)
	}
	fmt.Fprintf(w, "score: %d/100  status: %s\n", v.CompletenessScore, status)
	sections := []struct {
		label string
		items []string
	}{
		{"missing", v.MissingRequirements},
		{"contradictions", v.Contradictions},
		{"unclear", v.UnclearRequirements},
		{"recommendations", v.Recommendations},
	}
	for _, s := range sections {
		if len(s.items) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s:\n", colorize(colorBold, s.label))
		for _, it := range s.items {
			fmt.Fprintf(w, "  - %s\n", it)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncateLine(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
