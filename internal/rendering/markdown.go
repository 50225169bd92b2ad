package rendering

import (
	"embed"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/jonathan/transcript-archiver/internal/types"
)

//go:embed templates/combined.md.tmpl
var templateFS embed.FS

const combinedTemplate = "templates/combined.md.tmpl"

// CombinedDocument is the data passed to the combined transcript template.
type CombinedDocument struct {
	Generated time.Time
	Records   []*types.TranscriptRecord
}

var (
	parseOnce sync.Once
	parsed    *template.Template
	parseErr  error
)

func combined() (*template.Template, error) {
	parseOnce.Do(func() {
		parsed, parseErr = template.New("combined.md.tmpl").Funcs(template.FuncMap{
			"inline": InlineText,
			"date":   DatePrefix,
		}).ParseFS(templateFS, combinedTemplate)
		if parseErr != nil {
			parseErr = &TemplateError{Message: "failed to parse combined template", Cause: parseErr}
		}
	})
	return parsed, parseErr
}

// RenderCombined renders records, in the given order, into one Markdown
// document headed by the generation time.
func RenderCombined(records []*types.TranscriptRecord, generated time.Time) (string, error) {
	tmpl, err := combined()
	if err != nil {
		return "", err
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, CombinedDocument{Generated: generated, Records: records}); err != nil {
		return "", &TemplateError{Message: "failed to execute combined template", Cause: err}
	}
	return out.String(), nil
}
