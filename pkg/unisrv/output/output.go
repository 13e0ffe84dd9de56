package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatTemplate Format = "template"
)

// ParseFormat splits an --output value. "template=<text>" selects the
// template format and returns the template text.
func ParseFormat(value string) (Format, string, error) {
	if value == "" {
		return FormatTable, "", nil
	}
	if name, tmpl, ok := strings.Cut(value, "="); ok {
		if Format(name) != FormatTemplate {
			return "", "", fmt.Errorf("unknown output format: %s", name)
		}
		if tmpl == "" {
			return "", "", fmt.Errorf("template output requires a template, e.g. -o 'template={{.ID}}'")
		}
		return FormatTemplate, tmpl, nil
	}
	switch f := Format(value); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, "", nil
	case FormatTemplate:
		return "", "", fmt.Errorf("template output requires a template, e.g. -o 'template={{.ID}}'")
	default:
		return "", "", fmt.Errorf("unknown output format: %s", value)
	}
}

func WriteObject(w io.Writer, format Format, obj any) error {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(obj, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatYAML:
		data, err := yaml.Marshal(obj)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, string(data))
		return err
	case FormatTable:
		return fmt.Errorf("table format requires a specific formatter")
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// WriteTemplate renders obj with a text/template that has the sprig
// function map available.
func WriteTemplate(w io.Writer, text string, obj any) error {
	tmpl, err := template.New("output").Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return fmt.Errorf("invalid output template: %w", err)
	}
	if err := tmpl.Execute(w, obj); err != nil {
		return fmt.Errorf("failed to render output template: %w", err)
	}
	if !strings.HasSuffix(text, "\n") {
		_, err = fmt.Fprintln(w)
	}
	return err
}
