package service

import (
	"io"

	"github.com/timmy/tally/internal/domain"
	"github.com/timmy/tally/internal/schema"
	"github.com/timmy/tally/internal/tabular"
)

// RenderTemplate writes the upload template of a record type: the expected
// header and one sample row that passes validation.
func RenderTemplate(w io.Writer, rt domain.RecordType, format tabular.Format) error {
	sch, err := schema.For(rt)
	if err != nil {
		return err
	}
	tpl := sch.Template()
	return tabular.Write(w, format, string(rt), tpl.Header, tpl.Rows())
}

// TemplateFileName is the download name of a record type's template.
func TemplateFileName(rt domain.RecordType, format tabular.Format) string {
	return string(rt) + "_results_template" + tabular.Extension(format)
}
