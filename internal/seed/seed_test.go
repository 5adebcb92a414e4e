package seed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/example/session-scheduler/internal/application"
)

const document = `
templates:
  - name: Weekly count
    type: cycle_count
    repeat_type: weekly
    repeat_days: [monday, thursday]
    session_date: 2025-01-06
    repeat_end_date: 2025-03-31
    start_time: "09:00"
    end_time: "17:00"
    valid_from: 2025-01-06T08:00:00Z
    created_by: ops
    item_ids: [sku-1, sku-2]
    user_ids: [counter-1]
  - name: Month end
    repeat_type: monthly
    session_date: 2025-01-31
    created_by: ops
  - name: Broken
    repeat_type: daily
    session_date: 31/01/2025
    created_by: ops
`

type recordingCreator struct {
	inputs []application.TemplateInput
	reject string
}

func (r *recordingCreator) CreateTemplate(ctx context.Context, input application.TemplateInput) (application.Session, application.GenerateResult, error) {
	if input.Name == r.reject {
		return application.Session{}, application.GenerateResult{}, errors.New("rejected")
	}
	r.inputs = append(r.inputs, input)
	return application.Session{ID: input.Name}, application.GenerateResult{Created: 3}, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseAndInput(t *testing.T) {
	t.Parallel()

	file, err := Parse(strings.NewReader(document))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(file.Templates) != 3 {
		t.Fatalf("expected 3 templates, got %d", len(file.Templates))
	}

	input, err := file.Templates[0].Input()
	if err != nil {
		t.Fatalf("Input: %v", err)
	}
	if input.SessionDate.Format(time.DateOnly) != "2025-01-06" || input.RepeatEndDate == nil {
		t.Fatalf("dates not parsed: %+v", input)
	}
	if input.ValidFrom == nil || !input.ValidFrom.Equal(time.Date(2025, time.January, 6, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("valid_from not parsed: %v", input.ValidFrom)
	}
	if strings.Join(input.RepeatDays, ",") != "monday,thursday" || len(input.ItemIDs) != 2 {
		t.Fatalf("lists not decoded: %+v", input)
	}

	if _, err := file.Templates[2].Input(); err == nil {
		t.Fatal("expected a date parse error")
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	if _, err := Parse(strings.NewReader("templates:\n  - name: x\n    colour: red\n")); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
	file, err := Parse(strings.NewReader(""))
	if err != nil || len(file.Templates) != 0 {
		t.Fatalf("empty document should parse to nothing, got %+v, %v", file, err)
	}
}

func TestApply(t *testing.T) {
	t.Parallel()

	file, err := Parse(strings.NewReader(document))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	creator := &recordingCreator{reject: "Month end"}

	report, err := Apply(context.Background(), creator, file, discard())
	if err == nil {
		t.Fatal("expected joined errors")
	}
	if report.Created != 1 || report.Failed != 2 || report.Occurrences != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
	if !strings.Contains(err.Error(), `templates[1] "Month end"`) || !strings.Contains(err.Error(), `templates[2] "Broken"`) {
		t.Fatalf("errors should name the failing entries: %v", err)
	}
	if len(creator.inputs) != 1 || creator.inputs[0].Name != "Weekly count" {
		t.Fatalf("unexpected created inputs %+v", creator.inputs)
	}
}
