// Package prompt turns a task template, retrieved glossary lines and a masked
// post into the system/user message pair sent to the model.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"postrag/internal/config"
	"postrag/internal/domain"
)

// TimestampLayout is how {timestamp} is rendered.
const TimestampLayout = "2006-01-02 15:04 (Mon) MST"

// Params carries the per-request template values.
type Params struct {
	// Timestamp is the reference time of the post; zero means now.
	Timestamp time.Time
}

// Assembler composes prompts. It is read-only after construction.
type Assembler struct {
	templates map[domain.Task]config.TaskTemplate
	fixed     []string // placeholder/value pairs shared by every request
	fewShot   *FewShotStore
}

// NewAssembler validates cfg and builds an Assembler. Every task needs a
// template and every template may only reference config.Placeholders.
func NewAssembler(cfg config.PromptsConfig, fewShot *FewShotStore) (*Assembler, error) {
	if err := config.Validate(&config.AppConfig{Prompts: cfg}); err != nil {
		return nil, err
	}
	templates := make(map[domain.Task]config.TaskTemplate, len(domain.Tasks))
	for _, task := range domain.Tasks {
		tpl, ok := cfg.Tasks[string(task)]
		if !ok || strings.TrimSpace(tpl.Instructions) == "" {
			return nil, fmt.Errorf("prompts: no instructions for task %q", task)
		}
		templates[task] = tpl
	}
	return &Assembler{
		templates: templates,
		fixed: []string{
			"{categories}", strings.Join(cfg.Categories, ", "),
			"{delimiter}", cfg.Delimiter,
			"{source_language}", cfg.SourceLanguage,
			"{target_language}", cfg.TargetLanguage,
		},
		fewShot: fewShot,
	}, nil
}

// Assemble renders the prompt for task. User holds the instructions followed
// by the Examples, Glossary and Input blocks; empty blocks are omitted.
func (a *Assembler) Assemble(task domain.Task, glossary []string, input string, p Params) (domain.Prompt, error) {
	tpl, ok := a.templates[task]
	if !ok {
		return domain.Prompt{}, fmt.Errorf("%w: %q", domain.ErrUnknownTask, task)
	}
	ts := p.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	r := strings.NewReplacer(append([]string{"{timestamp}", ts.Format(TimestampLayout)}, a.fixed...)...)

	var b strings.Builder
	b.WriteString(strings.TrimSpace(r.Replace(tpl.Instructions)))

	if examples := a.fewShot.Examples(task); len(examples) > 0 {
		b.WriteString("\n\nExamples:")
		for _, ex := range examples {
			b.WriteString("\nInput: ")
			b.WriteString(ex.Input)
			b.WriteString("\nOutput: ")
			b.WriteString(ex.Output)
		}
	}
	if len(glossary) > 0 {
		b.WriteString("\n\nGlossary:")
		for _, line := range glossary {
			b.WriteString("\n")
			b.WriteString(line)
		}
	}
	b.WriteString("\n\nInput:\n")
	b.WriteString(input)

	return domain.Prompt{System: strings.TrimSpace(r.Replace(tpl.System)), User: b.String()}, nil
}
