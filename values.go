package stamp

import (
	"bytes"
	"maps"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/quintans/faults"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// LoadSubstitutions reads a YAML mapping of placeholder to value.
// Document order is kept and becomes substitution order.
func LoadSubstitutions(fs afero.Fs, filename string) (Substitutions, error) {
	data, err := afero.ReadFile(fs, filename)
	if err != nil {
		return nil, faults.Wrap(err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, faults.Wrap(err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, faults.Errorf("%s: expected a mapping of placeholder to value", filename)
	}

	subs := make(Substitutions, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return nil, faults.Errorf("%s:%d: value of %q must be a scalar", filename, value.Line, key.Value)
		}
		subs = append(subs, Token{Placeholder: key.Value, Value: value.Value})
	}
	return subs, nil
}

// Derived is a token whose value is computed from the run parameters.
type Derived struct {
	Token string
	Value string
}

// Params are the values a derived token can refer to.
type Params struct {
	Name    string
	Subtype string
}

// RenderDerived evaluates each derived value as a Go template with the sprig functions.
// Data model: . is the run Params.
func RenderDerived(defs []Derived, params Params, customFuncs template.FuncMap) (Substitutions, error) {
	funcs := sprig.TxtFuncMap()
	maps.Copy(funcs, customFuncs)

	subs := make(Substitutions, 0, len(defs))
	for _, d := range defs {
		t, err := template.New(d.Token).Funcs(funcs).Option("missingkey=error").Parse(d.Value)
		if err != nil {
			return nil, faults.Wrap(err)
		}
		var buf bytes.Buffer
		if err := t.Execute(&buf, params); err != nil {
			return nil, faults.Wrap(err)
		}
		subs = append(subs, Token{Placeholder: d.Token, Value: buf.String()})
	}
	return subs, nil
}
