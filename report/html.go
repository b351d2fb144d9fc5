package report

import (
	"bytes"
	_ "embed"
	"html/template"

	"github.com/pkg/errors"
)

//go:embed templates/email.html
var emailTemplate string

var emailTmpl = template.Must(template.New("email").Parse(emailTemplate))

func renderHTML(rows []Row, opts Options) (string, error) {
	var buf bytes.Buffer
	err := emailTmpl.Execute(&buf, struct {
		Rows      []Row
		Threshold int
		RunID     string
	}{rows, opts.Threshold, opts.RunID})
	if err != nil {
		return "", errors.Wrap(err, "render html report")
	}
	return buf.String(), nil
}
