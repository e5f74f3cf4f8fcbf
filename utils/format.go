// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

// Package utils holds terminal formatting helpers shared by the commands.
package utils

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// FormatInt formats an integer with thousands separators.
func FormatInt(n int64) string {
	s := strconv.FormatInt(n, 10)

	sign := ""
	if n < 0 {
		sign, s = "-", s[1:]
	}

	var b strings.Builder

	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}

	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}

		b.WriteString(s[i : i+3])
	}

	return sign + b.String()
}

// Percent renders part/total with one decimal, or "-" when total is zero.
func Percent(part, total int) string {
	if total == 0 {
		return "-"
	}

	return fmt.Sprintf("%.1f%%", 100*float64(part)/float64(total))
}

// Box is a table drawn with rounded box characters.
type Box struct {
	Title  string
	Header []string
	Rows   [][]string
}

// Render writes the table. Cells are left aligned and padded to the widest
// value of their column.
func (b *Box) Render(w io.Writer) {
	widths := make([]int, len(b.Header))
	for i, h := range b.Header {
		widths[i] = utf8.RuneCountInString(h)
	}

	for _, row := range b.Rows {
		for i := 0; i < min(len(row), len(widths)); i++ {
			widths[i] = max(widths[i], utf8.RuneCountInString(row[i]))
		}
	}

	rule := func(left, mid, right string) {
		parts := make([]string, len(widths))
		for i, n := range widths {
			parts[i] = strings.Repeat("─", n+2)
		}

		fmt.Fprintln(w, left+strings.Join(parts, mid)+right)
	}

	line := func(cells []string) {
		parts := make([]string, len(widths))
		for i, n := range widths {
			var c string
			if i < len(cells) {
				c = cells[i]
			}

			parts[i] = " " + c + strings.Repeat(" ", n-utf8.RuneCountInString(c)) + " "
		}

		fmt.Fprintln(w, "│"+strings.Join(parts, "│")+"│")
	}

	if b.Title != "" {
		fmt.Fprintln(w, b.Title)
	}

	rule("╭", "┬", "╮")
	line(b.Header)
	rule("├", "┼", "┤")

	for _, row := range b.Rows {
		line(row)
	}

	rule("╰", "┴", "╯")
}
