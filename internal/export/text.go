package export

import (
	"fmt"
	"strings"

	"github.com/Simplici0/marginlab/internal/store"
)

func renderText(c store.Calculation) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", title(c))
	fmt.Fprintf(&b, "Created: %s\n", createdAt(c.CreatedAt))
	if notes := strings.TrimSpace(c.Notes); notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", notes)
	}

	for _, s := range sections(c) {
		fmt.Fprintf(&b, "\n%s:\n", s.title)
		for _, f := range s.fields {
			fmt.Fprintf(&b, "- %s: %s\n", f.label, f.value)
		}
	}

	b.WriteString("\nRecommendations:\n")
	if len(c.Result.Recommendations) == 0 {
		b.WriteString("- None\n")
	}
	for _, rec := range c.Result.Recommendations {
		fmt.Fprintf(&b, "- %s\n", rec)
	}

	return []byte(b.String())
}
