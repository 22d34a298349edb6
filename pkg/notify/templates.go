package notify

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/shopspring/decimal"

	"github.com/royhairul/auto-ads-shopee/pkg/shopee"
)

var defaultTemplates = map[string]string{
	TemplateLowEffectiveness: `Campaign "{{ title }}" has a ROAS of only {{ roas|floatformat:2 }}, below {{ threshold|floatformat }}. Consider optimizing it.`,
	TemplateBudgetThreshold:  `Campaign "{{ title }}" reached {{ percent|floatformat:1 }}% of its daily budget and was raised to {{ new_budget|rupiah }}.`,
	TemplateBudgetInterval:   `Campaign "{{ title }}" was raised to {{ new_budget|rupiah }} on schedule. Next update around {{ next_update|time:"15:04" }}.`,
}

var registerFilters sync.Once

// Templates holds the compiled message templates.
type Templates struct {
	compiled map[string]*pongo2.Template
}

// LoadTemplates compiles the built-in templates. A file named <name>.tpl in
// dir replaces the built-in template of the same name.
func LoadTemplates(dir string) (*Templates, error) {
	registerFilters.Do(func() {
		if !pongo2.FilterExists("rupiah") {
			pongo2.RegisterFilter("rupiah", filterRupiah)
		}
	})

	t := &Templates{compiled: make(map[string]*pongo2.Template, len(defaultTemplates))}
	for name, src := range defaultTemplates {
		if dir != "" {
			content, err := os.ReadFile(filepath.Join(dir, name+".tpl"))
			switch {
			case err == nil:
				src = string(content)
			case !os.IsNotExist(err):
				return nil, fmt.Errorf("failed to read template %s: %w", name, err)
			}
		}

		tpl, err := pongo2.FromString(src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		t.compiled[name] = tpl
	}
	return t, nil
}

// Render executes the named template.
func (t *Templates) Render(name string, vars map[string]any) (string, error) {
	tpl, ok := t.compiled[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	out, err := tpl.Execute(pongo2.Context(vars))
	if err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return out, nil
}

// filterRupiah formats a rupiah amount, e.g. Rp1.250.000.
func filterRupiah(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	switch v := in.Interface().(type) {
	case decimal.Decimal:
		return pongo2.AsValue(shopee.FormatRupiah(v)), nil
	}
	if in.IsInteger() {
		return pongo2.AsValue(shopee.FormatRupiah(decimal.NewFromInt(int64(in.Integer())))), nil
	}
	if in.IsFloat() {
		return pongo2.AsValue(shopee.FormatRupiah(decimal.NewFromFloat(in.Float()))), nil
	}
	return in, nil
}
