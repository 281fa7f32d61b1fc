// Package response parses delimiter-separated model replies into typed
// records. Parsing never fails: malformed replies yield fallback records.
package response

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"postrag/internal/domain"
)

// DefaultDelimiter separates fields in a model reply.
const DefaultDelimiter = "|||"

// Field counts per task.
const (
	TranslationFields    = 4
	ClassificationFields = 3
	ScheduleFields       = 2
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Parser is stateless apart from its configuration and safe for concurrent use.
type Parser struct {
	delimiter  string
	categories map[string]struct{}
	location   *time.Location
	logger     *zap.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithCategories restricts categories to the given list; anything else
// collapses to domain.DefaultCategory.
func WithCategories(categories []string) Option {
	return func(p *Parser) {
		if len(categories) == 0 {
			return
		}
		p.categories = make(map[string]struct{}, len(categories))
		for _, c := range categories {
			p.categories[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
		}
	}
}

// WithLocation sets the zone for times that carry no offset. Default UTC.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.location = loc
		}
	}
}

// WithLogger sets the logger used for fallback warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Parser splitting on delimiter (DefaultDelimiter when empty).
func New(delimiter string, opts ...Option) *Parser {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	p := &Parser{delimiter: delimiter, location: time.UTC, logger: zap.NewNop()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Split trims raw, strips one surrounding code fence and splits it on the
// delimiter. ok is false when the field count differs from n. Fields equal
// to "none" (any case) come back empty.
func (p *Parser) Split(raw string, n int) ([]string, bool) {
	text := stripFence(strings.TrimSpace(raw))
	parts := strings.Split(text, p.delimiter)
	if len(parts) != n {
		return nil, false
	}
	for i, f := range parts {
		f = strings.TrimSpace(f)
		if strings.EqualFold(f, "none") {
			f = ""
		}
		parts[i] = f
	}
	return parts, true
}

// Translation parses translation, category, start and end. On a malformed
// reply the masked input is returned untranslated with the default category.
func (p *Parser) Translation(raw, maskedInput string) domain.TranslateResult {
	fields, ok := p.Split(raw, TranslationFields)
	if !ok {
		p.logger.Warn("malformed translation reply, using fallback",
			zap.Int("want_fields", TranslationFields), zap.String("raw", raw))
		return domain.TranslateResult{Translated: maskedInput, Category: domain.DefaultCategory}
	}
	return domain.TranslateResult{
		Translated: fields[0],
		Category:   p.category(fields[1]),
		Start:      p.parseTime(fields[2]),
		End:        p.parseTime(fields[3]),
	}
}

// Classification parses category, subcategory and reason.
func (p *Parser) Classification(raw string) domain.ClassifyResult {
	fields, ok := p.Split(raw, ClassificationFields)
	if !ok {
		p.logger.Warn("malformed classification reply, using fallback",
			zap.Int("want_fields", ClassificationFields), zap.String("raw", raw))
		return domain.ClassifyResult{Category: domain.DefaultCategory}
	}
	return domain.ClassifyResult{
		Category:    p.category(fields[0]),
		Subcategory: fields[1],
		Reason:      fields[2],
	}
}

// Schedule parses the start and end of an event window.
func (p *Parser) Schedule(raw string) domain.ScheduleResult {
	fields, ok := p.Split(raw, ScheduleFields)
	if !ok {
		p.logger.Warn("malformed schedule reply, using fallback",
			zap.Int("want_fields", ScheduleFields), zap.String("raw", raw))
		return domain.ScheduleResult{}
	}
	return domain.ScheduleResult{Start: p.parseTime(fields[0]), End: p.parseTime(fields[1])}
}

// Reply trims the free-form reply and strips a code fence.
func (p *Parser) Reply(raw string) string {
	return stripFence(strings.TrimSpace(raw))
}

func (p *Parser) category(s string) string {
	c := strings.ToLower(strings.TrimSpace(s))
	if c == "" {
		return domain.DefaultCategory
	}
	if p.categories != nil {
		if _, ok := p.categories[c]; !ok {
			p.logger.Debug("unknown category collapsed", zap.String("category", c))
			return domain.DefaultCategory
		}
	}
	return c
}

func (p *Parser) parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, p.location); err == nil {
			return &t
		}
	}
	p.logger.Warn("unparseable time in reply", zap.String("value", s))
	return nil
}

// stripFence removes one ``` fence pair (with optional language tag).
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := s[3 : len(s)-3]
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 && !strings.Contains(inner[:nl], " ") {
		inner = inner[nl+1:]
	}
	return strings.TrimSpace(inner)
}
