package export

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/Simplici0/marginlab/internal/store"
)

func renderPDF(c store.Calculation) ([]byte, error) {
	m := maroto.New(config.NewBuilder().Build())

	m.AddRows(
		text.NewRow(12, title(c), props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Left}),
		text.NewRow(6, "Created "+createdAt(c.CreatedAt), props.Text{Size: 9}),
	)
	if c.Notes != "" {
		m.AddRows(text.NewRow(6, c.Notes, props.Text{Size: 9}))
	}

	for _, s := range sections(c) {
		m.AddRows(text.NewRow(10, s.title, props.Text{Top: 3, Size: 12, Style: fontstyle.Bold}))
		for _, f := range s.fields {
			m.AddRow(6,
				text.NewCol(8, f.label, props.Text{Size: 10}),
				text.NewCol(4, f.value, props.Text{Size: 10, Align: align.Right}),
			)
		}
	}

	m.AddRows(text.NewRow(10, "Recommendations", props.Text{Top: 3, Size: 12, Style: fontstyle.Bold}))
	if len(c.Result.Recommendations) == 0 {
		m.AddRows(text.NewRow(6, "None", props.Text{Size: 10}))
	}
	for _, rec := range c.Result.Recommendations {
		m.AddRows(text.NewRow(8, "- "+rec, props.Text{Size: 10}))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate pdf: %w", err)
	}
	return doc.GetBytes(), nil
}
