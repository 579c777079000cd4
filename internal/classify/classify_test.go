package classify

import (
	"testing"

	"github.com/korrio/jobradar/internal/model"
)

func f(v float64) *float64 { return &v }

func TestDeriveBudget_Precedence(t *testing.T) {
	tests := []struct {
		name    string
		listing model.Listing
		want    float64
	}{
		{
			name:    "explicit budget wins over everything",
			listing: model.Listing{Budget: f(25000), BudgetMin: f(1), Price: f(2), Description: "งบ 99,000 บาท"},
			want:    25000,
		},
		{
			name:    "budget_min when budget absent",
			listing: model.Listing{BudgetMin: f(8000), Price: f(2)},
			want:    8000,
		},
		{
			name:    "price when budget and budget_min absent",
			listing: model.Listing{Price: f(3500)},
			want:    3500,
		},
		{
			name:    "extracted from description with THB marker",
			listing: model.Listing{Description: "Looking for a dev, budget around 12,500 THB negotiable"},
			want:    12500,
		},
		{
			name:    "extracted from Thai currency word",
			listing: model.Listing{Description: "งบประมาณ 45,000 บาท"},
			want:    45000,
		},
		{
			name:    "budget_text preferred over description",
			listing: model.Listing{BudgetText: "5,000 baht", Description: "around 90,000 THB"},
			want:    5000,
		},
		{
			name:    "case-insensitive marker",
			listing: model.Listing{Description: "pay: 7,000 thb"},
			want:    7000,
		},
		{
			name:    "no budget anywhere yields zero",
			listing: model.Listing{Title: "Fix my website", Description: "small fixes"},
			want:    0,
		},
		{
			name:    "number without currency marker is ignored",
			listing: model.Listing{Description: "deliver within 30,000 minutes"},
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveBudget(tt.listing); got != tt.want {
				t.Errorf("DeriveBudget() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSize_Boundaries(t *testing.T) {
	tests := []struct {
		budget float64
		want   model.SizeBucket
	}{
		{0, model.SizeXS},
		{4999, model.SizeXS},
		{5000, model.SizeS},
		{14999, model.SizeS},
		{15000, model.SizeM},
		{29999, model.SizeM},
		{30000, model.SizeL},
		{59999, model.SizeL},
		{60000, model.SizeXL},
		{250000, model.SizeXL},
	}

	for _, tt := range tests {
		if got := Size(tt.budget); got != tt.want {
			t.Errorf("Size(%v) = %s, want %s", tt.budget, got, tt.want)
		}
	}
}

func TestTags_BudgetTiers(t *testing.T) {
	tests := []struct {
		budget float64
		want   string
	}{
		{0, "no-budget"},
		{1500, "low-budget"},
		{19999, "low-budget"},
		{20000, "medium-budget"},
		{49999, "medium-budget"},
		{50000, "high-budget"},
	}

	for _, tt := range tests {
		tags := Tags(model.JobRecord{Budget: tt.budget})
		if len(tags) == 0 || tags[0] != tt.want {
			t.Errorf("Tags(budget=%v) = %v, want first tag %s", tt.budget, tags, tt.want)
		}
	}
}

func TestTags_ContentSignals(t *testing.T) {
	job := model.JobRecord{
		Budget:      30000,
		Category:    "Web Development",
		Title:       "ด่วน! React dashboard",
		Description: "Remote work OK, full-time contract",
	}

	got := Tags(job)
	want := []string{"medium-budget", "web-development", "urgent", "remote", "full-time"}
	if len(got) != len(want) {
		t.Fatalf("Tags() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Tags()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Web Development", "web-development"},
		{"IoT Work", "iot-work"},
		{"IT  Solutions ", "it-solutions"},
		{"C++ / Embedded", "c--embedded"},
	}

	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
