// Package seed imports recurring templates from a YAML document.
//
//	templates:
//	  - name: Weekly count
//	    repeat_type: weekly
//	    repeat_days: [monday, thursday]
//	    session_date: 2025-01-06
//	    repeat_end_date: 2025-03-31
//	    start_time: "09:00"
//	    end_time: "17:00"
//	    created_by: ops
//	    item_ids: [sku-1, sku-2]
//	    user_ids: [counter-1]
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/session-scheduler/internal/application"
	"github.com/example/session-scheduler/internal/recurrence"
)

// File is the top level of a seed document.
type File struct {
	Templates []Template `yaml:"templates"`
}

// Template is one template entry. Dates are YYYY-MM-DD, instants RFC 3339.
type Template struct {
	Name          string   `yaml:"name"`
	Type          string   `yaml:"type"`
	RepeatType    string   `yaml:"repeat_type"`
	RepeatDays    []string `yaml:"repeat_days"`
	SessionDate   string   `yaml:"session_date"`
	RepeatEndDate string   `yaml:"repeat_end_date"`
	StartTime     string   `yaml:"start_time"`
	EndTime       string   `yaml:"end_time"`
	ValidFrom     string   `yaml:"valid_from"`
	ValidUntil    string   `yaml:"valid_until"`
	CreatedBy     string   `yaml:"created_by"`
	ItemIDs       []string `yaml:"item_ids"`
	UserIDs       []string `yaml:"user_ids"`
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(r io.Reader) (File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, nil
		}
		return File{}, fmt.Errorf("seed: decode: %w", err)
	}
	return file, nil
}

// Input converts the entry into a TemplateInput.
func (t Template) Input() (application.TemplateInput, error) {
	input := application.TemplateInput{
		Name:       t.Name,
		Type:       t.Type,
		RepeatType: t.RepeatType,
		RepeatDays: t.RepeatDays,
		StartTime:  t.StartTime,
		EndTime:    t.EndTime,
		CreatedBy:  t.CreatedBy,
		ItemIDs:    t.ItemIDs,
		UserIDs:    t.UserIDs,
	}
	var err error
	if input.SessionDate, err = recurrence.ParseDate(t.SessionDate); err != nil {
		return application.TemplateInput{}, fmt.Errorf("session_date: %w", err)
	}
	if input.RepeatEndDate, err = optionalDate(t.RepeatEndDate); err != nil {
		return application.TemplateInput{}, fmt.Errorf("repeat_end_date: %w", err)
	}
	if input.ValidFrom, err = optionalInstant(t.ValidFrom); err != nil {
		return application.TemplateInput{}, fmt.Errorf("valid_from: %w", err)
	}
	if input.ValidUntil, err = optionalInstant(t.ValidUntil); err != nil {
		return application.TemplateInput{}, fmt.Errorf("valid_until: %w", err)
	}
	return input, nil
}

// TemplateCreator is satisfied by *application.SessionService.
type TemplateCreator interface {
	CreateTemplate(ctx context.Context, input application.TemplateInput) (application.Session, application.GenerateResult, error)
}

// Report summarises an import.
type Report struct {
	Created     int
	Failed      int
	Occurrences int
}

// Apply creates every template in file. A failing entry is logged and skipped; the
// joined errors are returned alongside the report.
func Apply(ctx context.Context, creator TemplateCreator, file File, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		report Report
		errs   []error
	)
	for i, entry := range file.Templates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		label := fmt.Sprintf("templates[%d] %q", i, strings.TrimSpace(entry.Name))
		input, err := entry.Input()
		if err != nil {
			report.Failed++
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
			continue
		}
		template, result, err := creator.CreateTemplate(ctx, input)
		if err != nil {
			report.Failed++
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
			logger.Warn("seed template rejected", "entry", i, "name", entry.Name, "error", err)
			continue
		}
		report.Created++
		report.Occurrences += result.Created
		logger.Info("seed template created", "entry", i, "template_id", template.ID, "occurrences", result.Created)
	}
	return report, errors.Join(errs...)
}

func optionalDate(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	d, err := recurrence.ParseDate(value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func optionalInstant(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return nil, err
	}
	return &t, nil
}
