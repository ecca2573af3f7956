package main

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/unsupervisednn/moonrider/internal/export"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

var titleCaser = cases.Title(language.English, cases.NoLower)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func renderDifficulties(diffs []export.Difficulty) string {
	rows := make([][]string, 0, len(diffs))
	for _, diff := range diffs {
		characteristic, level := diff.Characteristic, diff.Level
		if characteristic == "" {
			characteristic, level, _ = strings.Cut(diff.Key, "-")
		}
		rows = append(rows, []string{
			characteristicLabel(characteristic),
			level,
			diff.Source,
			strconv.Itoa(diff.Notes),
		})
	}
	return renderTable(
		[]string{"Characteristic", "Difficulty", "File", "Notes"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
	)
}

// characteristicLabel turns identifiers such as "OneSaber" or "90Degree"
// into "One Saber" and "90 Degree".
func characteristicLabel(name string) string {
	var b strings.Builder
	var prev rune
	for i, r := range name {
		if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
		prev = r
	}
	return titleCaser.String(b.String())
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(n)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
