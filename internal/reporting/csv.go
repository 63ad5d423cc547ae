package reporting

import (
	"strconv"
	"strings"

	"price-feature-lab/internal/domain"
	"price-feature-lab/internal/table"
)

// FeatureTable converts feature rows to a text table.
// Dates use domain.DateLayout; floats use the shortest exact representation,
// with NaN, +Inf and -Inf spelled out.
func FeatureTable(rows []domain.FeatureRow, includeLog bool) *table.Table {
	t := &table.Table{Columns: domain.FeatureColumns(includeLog)}
	for _, r := range rows {
		cells := []string{
			r.ProdID,
			r.Date.Format(domain.DateLayout),
			formatFloat(r.Price),
			strconv.FormatInt(r.QtyOrder, 10),
			formatFloat(r.Min),
			formatFloat(r.Max),
			formatFloat(r.Mean),
			formatFloat(r.Median),
			strconv.FormatInt(r.QtyDayShift, 10),
			formatFloat(r.DiffMinPct),
			formatFloat(r.DiffMeanPct),
		}
		if includeLog {
			if r.QtyOrderLog != nil {
				cells = append(cells, formatFloat(*r.QtyOrderLog))
			} else {
				cells = append(cells, "")
			}
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// RenderFeaturesCSV renders feature rows as CSV string.
func RenderFeaturesCSV(rows []domain.FeatureRow, includeLog bool) (string, error) {
	var sb strings.Builder
	if err := table.WriteCSV(&sb, FeatureTable(rows, includeLog)); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
