package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	ansiReset = "\033[0m"
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiCyan  = "\033[36m"
	ansiBold  = "\033[1m"
	ansiDim   = "\033[2m"
)

var colorsEnabled = os.Getenv("NO_COLOR") == ""

func colorize(color, text string) string {
	if !colorsEnabled {
		return text
	}
	return color + text + ansiReset
}

func colorGreen(text string) string { return colorize(ansiGreen, text) }
func colorRed(text string) string   { return colorize(ansiRed, text) }
func colorCyan(text string) string  { return colorize(ansiCyan, text) }
func colorBold(text string) string  { return colorize(ansiBold, text) }
func colorDim(text string) string   { return colorize(ansiDim, text) }

func printSuccess(w io.Writer, message string) {
	fmt.Fprintln(w, colorGreen("✓")+" "+message)
}

func printError(message string) {
	fmt.Fprintln(os.Stderr, colorRed("✗")+" "+message)
}

func printHeader(w io.Writer, title string) {
	fmt.Fprintln(w, colorBold(colorCyan(title)))
	fmt.Fprintln(w, colorDim(strings.Repeat("─", 40)))
}

// printTable pads on the raw cell width; headers are padded before they are
// colored so escape codes do not count.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	for i, h := range headers {
		fmt.Fprint(w, colorBold(fmt.Sprintf("%-*s", widths[i], h)), "  ")
	}
	fmt.Fprintln(w)

	for _, width := range widths {
		fmt.Fprint(w, strings.Repeat("─", width), "  ")
	}
	fmt.Fprintln(w)

	for _, row := range rows {
		for i, cell := range row {
			fmt.Fprintf(w, "%-*s  ", widths[i], cell)
		}
		fmt.Fprintln(w)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
