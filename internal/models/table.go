package models

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownTable = errors.New("unknown table")

// Table describes a dashboard table: every one of them is keyed by id and
// scoped to its owner through user_id.
type Table struct {
	Name    string
	OrderBy string
	// UpsertKey names the unique column writes may merge on. Tables
	// without one only take plain inserts.
	UpsertKey string
}

var Tables = map[string]Table{
	"customers":               {Name: "customers", OrderBy: "created_at"},
	"marketing_budgets":       {Name: "marketing_budgets", OrderBy: "created_at"},
	"marketing_expenses":      {Name: "marketing_expenses", OrderBy: "date"},
	"email_campaigns":         {Name: "email_campaigns", OrderBy: "created_at"},
	"email_templates":         {Name: "email_templates", OrderBy: "created_at"},
	"email_subscribers":       {Name: "email_subscribers", OrderBy: "created_at"},
	"content_library":         {Name: "content_library", OrderBy: "created_at"},
	"social_media_posts":      {Name: "social_media_posts", OrderBy: "created_at"},
	"notifications":           {Name: "notifications", OrderBy: "created_at"},
	"seo_page_metrics":        {Name: "seo_page_metrics", OrderBy: "checked_at"},
	"seo_competitor_tracking": {Name: "seo_competitor_tracking", OrderBy: "tracked_at"},
	"dashboard_preferences":   {Name: "dashboard_preferences", OrderBy: "updated_at", UpsertKey: OwnerField},
	"user_metrics":            {Name: "user_metrics", OrderBy: "recorded_at"},
	"post_analytics":          {Name: "post_analytics", OrderBy: "created_at"},
	"campaign_analytics":      {Name: "campaign_analytics", OrderBy: "created_at"},
}

const (
	NotificationsTable = "notifications"
	BudgetsTable       = "marketing_budgets"
	PreferencesTable   = "dashboard_preferences"
)

func LookupTable(name string) (Table, error) {
	t, ok := Tables[name]
	if !ok {
		return Table{}, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}

func TableNames() []string {
	names := make([]string, 0, len(Tables))
	for name := range Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
