package analysis

import (
	"os"
	"strings"
	"text/template"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/meal-analyzer/internal/model"
)

const defaultSystemPrompt = `You are a nutrition assistant for a personal meal log.
Answer with a single JSON object and nothing else, using exactly this shape:
{"meal": "breakfast|lunch|dinner|snack",
 "foods": [{"label": "string", "confidence": 0.0, "quantity": "string"}],
 "nutrition": {"calories": 0, "macros": {"protein": 0, "carbs": 0, "fat": 0}}}
confidence is between 0 and 1. Nutrition values are non-negative numbers; protein, carbs and fat are grams.`

const defaultImagePrompt = `Identify every food visible in this photo and estimate the meal's nutrition.
{{- if .MealHint}}
The user logged this as {{.MealHint}}.
{{- end}}
{{- if .Date}}
Meal date: {{.Date}}.
{{- end}}`

const defaultTextPrompt = `The user described a meal in their own words:
"""
{{.Text}}
"""
List the foods mentioned and estimate the meal's nutrition.
{{- if .MealHint}}
The user logged this as {{.MealHint}}.
{{- end}}
{{- if .Date}}
Meal date: {{.Date}}.
{{- end}}`

// PromptConfig holds the raw prompt templates. Empty fields keep the
// built-in defaults.
type PromptConfig struct {
	System string `yaml:"system"`
	Image  string `yaml:"image"`
	Text   string `yaml:"text"`
}

// PromptData is the template input.
type PromptData struct {
	Text     string
	MealHint model.MealType
	Date     string
}

// Prompts renders per-modality prompts. Audio uses the text template.
type Prompts struct {
	system string
	image  *template.Template
	text   *template.Template
}

// DefaultPrompts returns the built-in prompts.
func DefaultPrompts() *Prompts {
	p, err := NewPrompts(PromptConfig{})
	if err != nil {
		panic(err) // built-in templates are static
	}
	return p
}

// NewPrompts compiles cfg over the built-in defaults.
func NewPrompts(cfg PromptConfig) (*Prompts, error) {
	if strings.TrimSpace(cfg.System) == "" {
		cfg.System = defaultSystemPrompt
	}
	if strings.TrimSpace(cfg.Image) == "" {
		cfg.Image = defaultImagePrompt
	}
	if strings.TrimSpace(cfg.Text) == "" {
		cfg.Text = defaultTextPrompt
	}

	image, err := template.New("image").Option("missingkey=error").Parse(cfg.Image)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: parse image prompt")
	}
	text, err := template.New("text").Option("missingkey=error").Parse(cfg.Text)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: parse text prompt")
	}
	return &Prompts{system: cfg.System, image: image, text: text}, nil
}

// LoadPrompts reads prompt overrides from a YAML file with a top-level
// "prompts" key. An empty path returns the defaults.
func LoadPrompts(path string) (*Prompts, error) {
	if path == "" {
		return DefaultPrompts(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: read prompts %s", path)
	}

	var wrapper struct {
		Prompts PromptConfig `yaml:"prompts"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "analysis: parse prompts")
	}
	return NewPrompts(wrapper.Prompts)
}

// Render builds the prompt for modality.
func (p *Prompts) Render(modality model.Modality, data PromptData) (Prompt, error) {
	tmpl := p.text
	if modality == model.ModalityImage {
		tmpl = p.image
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return Prompt{}, eris.Wrapf(err, "analysis: render %s prompt", modality)
	}
	return Prompt{System: p.system, User: strings.TrimSpace(sb.String())}, nil
}
