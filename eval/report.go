package eval

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/piitag/piitag/dataset"
	"github.com/piitag/piitag/predict"
	"github.com/pkg/errors"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	textStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230"))
	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Width(12)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	totalStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

// RenderMetrics renders per-label, micro and PII metrics as a table.
func RenderMetrics(m *Metrics) string {
	var rows [][]string
	row := func(name string, c Counts) []string {
		return []string{
			name,
			fmt.Sprint(c.TP), fmt.Sprint(c.FP), fmt.Sprint(c.FN),
			fmt.Sprintf("%.3f", c.Precision()), fmt.Sprintf("%.3f", c.Recall()), fmt.Sprintf("%.3f", c.F1()),
		}
	}
	for _, label := range m.Labels() {
		rows = append(rows, row(label, m.PerLabel[label]))
	}
	numLabels := len(rows)
	rows = append(rows, row("micro", m.Micro), row(PII, m.PII))

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("LABEL", "TP", "FP", "FN", "PRECISION", "RECALL", "F1").
		Rows(rows...).
		StyleFunc(func(r, _ int) lipgloss.Style {
			switch {
			case r == table.HeaderRow:
				return headerStyle
			case r >= numLabels:
				return totalStyle
			}
			return cellStyle
		})
	return t.Render()
}

// extract returns the characters [start, end) of text, clamped to the text.
func extract(text []rune, start, end int) string {
	start = max(0, min(start, len(text)))
	end = max(start, min(end, len(text)))
	return string(text[start:end])
}

func writeSpan(b *strings.Builder, indent string, text []rune, label string, start, end int) {
	fmt.Fprintf(b, "%s%s | %d-%d | %q\n", indent, labelStyle.Render(label), start, end, extract(text, start, end))
}

// GoldReport writes, for each record, its text and the label, offsets and covered text of each
// gold entity. It is used to check annotations before training.
func GoldReport(w io.Writer, records []dataset.Record) error {
	var b strings.Builder
	for _, rec := range records {
		text := []rune(rec.Text)
		fmt.Fprintf(&b, "\n%s %s\n", titleStyle.Render("ID:"), rec.ID)
		fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("Text:"), textStyle.Render(fmt.Sprintf("%q", rec.Text)))
		for _, ent := range rec.Entities {
			writeSpan(&b, "  ", text, ent.Label, ent.Start, ent.End)
		}
	}
	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "failed to write gold report")
}

// CompareReport writes gold entities and predicted spans side by side, for each predicted id that
// has a gold record, in id order.
func CompareReport(w io.Writer, records []dataset.Record, preds predict.Predictions) error {
	gold := make(map[string]dataset.Record, len(records))
	for _, rec := range records {
		gold[rec.ID] = rec
	}
	ids := make([]string, 0, len(preds))
	for id := range preds {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var b strings.Builder
	for _, id := range ids {
		rec, ok := gold[id]
		if !ok {
			continue
		}
		text := []rune(rec.Text)
		fmt.Fprintf(&b, "\n%s %s\n", titleStyle.Render("ID:"), id)
		fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("Text:"), textStyle.Render(rec.Text))
		b.WriteString("  GOLD:\n")
		for _, ent := range rec.Entities {
			writeSpan(&b, "    ", text, ent.Label, ent.Start, ent.End)
		}
		b.WriteString("  PRED:\n")
		if len(preds[id]) == 0 {
			b.WriteString("    " + faintStyle.Render("(none)") + "\n")
		}
		for _, span := range preds[id] {
			writeSpan(&b, "    ", text, span.Label, span.Start, span.End)
		}
	}
	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "failed to write prediction report")
}
