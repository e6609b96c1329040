package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/Simplici0/marginlab/internal/store"
)

// renderCSV writes one section,label,value record per line.
func renderCSV(c store.Calculation) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := [][]string{
		{"section", "field", "value"},
		{"calculation", "id", c.ID},
		{"calculation", "title", title(c)},
		{"calculation", "notes", c.Notes},
		{"calculation", "created_at", createdAt(c.CreatedAt)},
	}
	for _, s := range sections(c) {
		for _, f := range s.fields {
			records = append(records, []string{s.title, f.label, f.value})
		}
	}
	for i, rec := range c.Result.Recommendations {
		records = append(records, []string{"Recommendations", fmt.Sprintf("%d", i+1), rec})
	}

	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}
