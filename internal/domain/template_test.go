package domain_test

import (
	"testing"

	"github.com/outreachhq/sendpipe/internal/domain"
)

func strptr(s string) *string { return &s }

func TestRenderTemplate(t *testing.T) {
	prospect := &domain.CampaignProspect{
		FirstName: "Jane",
		LastName:  "Doe",
		Company:   strptr("Acme Corp"),
		Title:     strptr("VP of Sales"),
	}

	t.Run("substitutes all placeholders", func(t *testing.T) {
		got := domain.RenderTemplate(
			"Hi {first_name} {last_name}, saw your work at {company} as {title}.",
			prospect,
		)
		want := "Hi Jane Doe, saw your work at Acme Corp as VP of Sales."
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	})

	t.Run("company_name alias", func(t *testing.T) {
		got := domain.RenderTemplate("From {company_name}", prospect)
		if got != "From Acme Corp" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("nil optional fields render empty", func(t *testing.T) {
		bare := &domain.CampaignProspect{FirstName: "Jane", LastName: "Doe"}
		got := domain.RenderTemplate("{first_name} at {company}", bare)
		if got != "Jane at " {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("unknown placeholders left untouched", func(t *testing.T) {
		got := domain.RenderTemplate("Hi {nickname}", prospect)
		if got != "Hi {nickname}" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("repeated placeholder substituted everywhere", func(t *testing.T) {
		got := domain.RenderTemplate("{first_name}, yes you {first_name}", prospect)
		if got != "Jane, yes you Jane" {
			t.Fatalf("got %q", got)
		}
	})
}

func TestTaskValidate(t *testing.T) {
	valid := domain.Task{
		QueueID:     "q1",
		ProspectID:  "p1",
		AccountID:   "a1",
		MessageType: domain.ActionConnectionRequest,
	}

	t.Run("valid task passes", func(t *testing.T) {
		if err := valid.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("missing queue id", func(t *testing.T) {
		task := valid
		task.QueueID = ""
		if err := task.Validate(); err != domain.ErrInvalidTask {
			t.Fatalf("expected ErrInvalidTask, got %v", err)
		}
	})

	t.Run("missing prospect id", func(t *testing.T) {
		task := valid
		task.ProspectID = ""
		if err := task.Validate(); err != domain.ErrInvalidTask {
			t.Fatalf("expected ErrInvalidTask, got %v", err)
		}
	})

	t.Run("missing account id", func(t *testing.T) {
		task := valid
		task.AccountID = ""
		if err := task.Validate(); err != domain.ErrInvalidTask {
			t.Fatalf("expected ErrInvalidTask, got %v", err)
		}
	})
}
