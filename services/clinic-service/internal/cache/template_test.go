package cache

import (
	"context"
	"testing"

	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/scheduling"
	"github.com/segmentio/kafka-go"
)

type countingLoader struct {
	calls map[string]int
	rules []scheduling.Rule
	// during runs inside a load, before it returns.
	during func()
}

func (l *countingLoader) WeeklyRules(_ context.Context, professionalID string) ([]scheduling.Rule, error) {
	l.calls[professionalID]++
	if l.during != nil {
		l.during()
	}
	return l.rules, nil
}

func TestTemplateCacheHitsAndInvalidation(t *testing.T) {
	loader := &countingLoader{calls: map[string]int{}, rules: []scheduling.Rule{{ProfessionalID: "pro-1", Day: scheduling.Monday, Start: 540, End: 720, SlotMinutes: 30}}}
	c, err := NewTemplateCache(loader, 8, nil)
	if err != nil {
		t.Fatalf("NewTemplateCache: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.WeeklyRules(ctx, "pro-1"); err != nil {
			t.Fatalf("WeeklyRules: %v", err)
		}
	}
	if loader.calls["pro-1"] != 1 {
		t.Fatalf("expected a single load, got %d", loader.calls["pro-1"])
	}

	c.Invalidate("pro-1")
	if _, err := c.WeeklyRules(ctx, "pro-1"); err != nil {
		t.Fatalf("WeeklyRules: %v", err)
	}
	if loader.calls["pro-1"] != 2 {
		t.Fatalf("expected reload after invalidation, got %d", loader.calls["pro-1"])
	}
}

func TestTemplateCacheDropsLoadRacingInvalidation(t *testing.T) {
	loader := &countingLoader{calls: map[string]int{}}
	c, err := NewTemplateCache(loader, 8, nil)
	if err != nil {
		t.Fatalf("NewTemplateCache: %v", err)
	}
	loader.during = func() { c.Invalidate("pro-1") }

	if _, err := c.WeeklyRules(context.Background(), "pro-1"); err != nil {
		t.Fatalf("WeeklyRules: %v", err)
	}
	if c.Len() != 0 {
		t.Fatal("a load that raced an invalidation must not be cached")
	}
}

func TestTemplateCachePurgeDropsRacingLoad(t *testing.T) {
	loader := &countingLoader{calls: map[string]int{}}
	c, err := NewTemplateCache(loader, 8, nil)
	if err != nil {
		t.Fatalf("NewTemplateCache: %v", err)
	}
	loader.during = c.Purge

	if _, err := c.WeeklyRules(context.Background(), "never-seen"); err != nil {
		t.Fatalf("WeeklyRules: %v", err)
	}
	if c.Len() != 0 {
		t.Fatal("a load that raced a purge must not be cached")
	}
}

func TestHandleScheduleReplaced(t *testing.T) {
	loader := &countingLoader{calls: map[string]int{}}
	c, err := NewTemplateCache(loader, 8, nil)
	if err != nil {
		t.Fatalf("NewTemplateCache: %v", err)
	}
	ctx := context.Background()
	_, _ = c.WeeklyRules(ctx, "pro-1")
	_, _ = c.WeeklyRules(ctx, "pro-2")

	if err := c.HandleScheduleReplaced(ctx, kafka.Message{Value: []byte(`{"professional_id":"pro-1","rules":2}`)}); err != nil {
		t.Fatalf("HandleScheduleReplaced: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("expected only pro-2 cached, got %d entries", c.Len())
	}
	if err := c.HandleScheduleReplaced(ctx, kafka.Message{Value: []byte(`not json`)}); err != nil {
		t.Fatalf("malformed payloads must not be retried, got %v", err)
	}
}
