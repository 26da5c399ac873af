package assistant

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/indivisible/internal/model"
	"github.com/dukerupert/indivisible/internal/store"
)

const (
	contextTaskLimit     = 50
	contextActivityLimit = 20
	historyLimit         = 20
)

// Stores bundles the tables the assistant reads and writes.
type Stores struct {
	Households  *store.HouseholdStore
	Profiles    *store.ProfileStore
	Lists       *store.ListStore
	Tasks       *store.TaskStore
	Activity    *store.ActivityStore
	Messages    *store.MessageStore
	Preferences *store.PreferencesStore
	Reminders   *store.ReminderStore
}

func NewStores(db *sql.DB) Stores {
	return Stores{
		Households:  store.NewHouseholdStore(db),
		Profiles:    store.NewProfileStore(db),
		Lists:       store.NewListStore(db),
		Tasks:       store.NewTaskStore(db),
		Activity:    store.NewActivityStore(db),
		Messages:    store.NewMessageStore(db),
		Preferences: store.NewPreferencesStore(db),
		Reminders:   store.NewReminderStore(db),
	}
}

// HouseholdContext is the snapshot of household state serialized into every
// prompt.
type HouseholdContext struct {
	Household      model.Household
	Members        []model.Profile
	Lists          []model.List
	Tasks          []model.TaskWithList
	RecentActivity []model.ActivityEntry
	CurrentUserID  string
	AgentTone      string
}

// Member returns the household member with the given id, or nil.
func (hc *HouseholdContext) Member(id string) *model.Profile {
	for i := range hc.Members {
		if hc.Members[i].ID == id {
			return &hc.Members[i]
		}
	}
	return nil
}

// Partners returns every member other than the current speaker.
func (hc *HouseholdContext) Partners() []model.Profile {
	var out []model.Profile
	for _, m := range hc.Members {
		if m.ID != hc.CurrentUserID {
			out = append(out, m)
		}
	}
	return out
}

type Gatherer struct {
	stores Stores
}

func NewGatherer(stores Stores) *Gatherer {
	return &Gatherer{stores: stores}
}

// Gather reads the household snapshot. The five independent reads run
// concurrently; tasks are read afterwards since they are scoped by the
// household's lists.
func (g *Gatherer) Gather(ctx context.Context, householdID, userID string) (*HouseholdContext, error) {
	hc := &HouseholdContext{CurrentUserID: userID, AgentTone: model.DefaultAgentTone}

	var household *model.Household
	var prefs *model.AssistantPreferences

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		household, err = g.stores.Households.GetByID(gctx, householdID)
		return err
	})
	eg.Go(func() error {
		var err error
		hc.Members, err = g.stores.Profiles.ListByHousehold(gctx, householdID)
		return err
	})
	eg.Go(func() error {
		var err error
		hc.Lists, err = g.stores.Lists.ListByHousehold(gctx, householdID)
		return err
	})
	eg.Go(func() error {
		var err error
		hc.RecentActivity, err = g.stores.Activity.ListByHousehold(gctx, householdID, contextActivityLimit)
		return err
	})
	eg.Go(func() error {
		var err error
		prefs, err = g.stores.Preferences.GetByUser(gctx, userID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("gather context: %w", err)
	}

	if household != nil {
		hc.Household = *household
	} else {
		hc.Household = model.Household{ID: householdID, Name: "Household"}
	}
	if prefs != nil && prefs.AgentTone != "" {
		hc.AgentTone = prefs.AgentTone
	}

	if len(hc.Lists) > 0 {
		tasks, err := g.stores.Tasks.ListForHousehold(ctx, householdID, contextTaskLimit)
		if err != nil {
			return nil, fmt.Errorf("gather tasks: %w", err)
		}
		hc.Tasks = tasks
	}
	return hc, nil
}
