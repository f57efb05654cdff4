package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/stepdag/internal/store"
)

const (
	plotWidth  = 80
	plotHeight = 10
)

// PlotTrace renders every state coordinate of a trace as a stacked set of
// ASCII charts with a summary header.
func PlotTrace(tr *store.Trace, title string) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")

	if tr.Len() == 0 {
		b.WriteString(valueStyle.Render("no observations"))
		return b.String()
	}

	for i := 0; i < tr.Dim(); i++ {
		graph := asciigraph.Plot(tr.Series(i),
			asciigraph.Height(plotHeight),
			asciigraph.Width(plotWidth),
			asciigraph.Caption(fmt.Sprintf("%s[%d]", tr.Component, i)),
		)
		b.WriteString(graphStyle.Render(graph))
		b.WriteString("\n")
	}

	b.WriteString(labelStyle.Render("observations"))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", tr.Len())))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("t final"))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%.6g", tr.Times[len(tr.Times)-1])))
	b.WriteString("\n")
	if n := len(tr.FailedAt); n > 0 {
		b.WriteString(labelStyle.Render("failed steps"))
		b.WriteString(failStyle.Render(fmt.Sprintf("%d", n)))
		b.WriteString("\n")
	}
	return b.String()
}
