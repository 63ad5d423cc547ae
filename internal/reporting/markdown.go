package reporting

import (
	"fmt"
	"strings"
	"time"

	"price-feature-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Feature Build Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s\n\n", r.RunID))
	if r.DataVersion != "" {
		sb.WriteString(fmt.Sprintf("Data version: %s\n\n", r.DataVersion))
	}
	if r.SalesTable != "" || r.CompetitorTable != "" {
		sb.WriteString(fmt.Sprintf("Inputs: sales=%s | competitor prices=%s\n\n", r.SalesTable, r.CompetitorTable))
	}
	columns := domain.FeatureColumns(r.IncludeQtyLog)
	sb.WriteString(fmt.Sprintf("Columns: %s\n\n", strings.Join(columns, ", ")))

	// Stages
	sb.WriteString("## Pipeline Stages\n\n")
	if len(r.Stages) > 0 {
		sb.WriteString("| Stage | Rows |\n")
		sb.WriteString("|-------|------|\n")
		for _, s := range r.Stages {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", s.Stage, s.Rows))
		}
	} else {
		sb.WriteString("No stage counts available.\n")
	}
	sb.WriteString("\n")

	// Data Quality
	sb.WriteString("## Data Quality\n\n")
	if len(r.DataQuality.NonFinite) > 0 {
		sb.WriteString("### Non-finite Values\n\n")
		sb.WriteString("| Column | Count |\n")
		sb.WriteString("|--------|-------|\n")
		for _, nf := range r.DataQuality.NonFinite {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", nf.Column, nf.Count))
		}
		sb.WriteString("\n")
		sb.WriteString("Non-finite values come from zero competitor prices and are kept in the output.\n\n")
	} else {
		sb.WriteString("All feature values are finite.\n\n")
	}

	if len(r.DataQuality.Warnings) > 0 {
		sb.WriteString("### Warnings\n\n")
		for _, w := range r.DataQuality.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
		sb.WriteString("\n")
	}

	// Products
	sb.WriteString("## Products\n\n")
	if len(r.Products) > 0 {
		sb.WriteString("| Product | Rows | First | Last | Total Qty | Mean Price | Mean DiffMin% | Mean DiffMean% |\n")
		sb.WriteString("|---------|------|-------|------|-----------|------------|---------------|----------------|\n")
		for _, p := range r.Products {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %d | %.4f | %.4f | %.4f |\n",
				p.ProdID, p.FeatureRows,
				p.FirstDate.Format(domain.DateLayout), p.LastDate.Format(domain.DateLayout),
				p.TotalQty, p.MeanPrice, p.MeanDiffMinPct, p.MeanDiffMeanPct))
		}
	} else {
		sb.WriteString("No feature rows.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
