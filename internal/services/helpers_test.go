package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/saeid-a/coachmatch/internal/models"
	"github.com/saeid-a/coachmatch/internal/repository"
	"github.com/saeid-a/coachmatch/internal/repository/memstore"
)

var errStoreDown = errors.New("connection refused")

type recordingDispatcher struct {
	mu     sync.Mutex
	events []Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event Event) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) kinds() []EventKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	kinds := make([]EventKind, 0, len(d.events))
	for _, event := range d.events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func seedTrainer(t *testing.T, store *memstore.Store, id, name string, specializations ...string) {
	t.Helper()
	rating := 4.5
	if _, err := store.Trainers().Upsert(context.Background(), repository.UpsertTrainerInput{
		UserID:          id,
		FullName:        name,
		Specializations: specializations,
		ExperienceYears: 5,
		Rating:          &rating,
	}); err != nil {
		t.Fatalf("seed trainer %s: %v", id, err)
	}
}

func newTestMatchService(t *testing.T) (*MatchService, *memstore.Store, *recordingDispatcher) {
	t.Helper()
	store := memstore.New()
	seedTrainer(t, store, "trainer-1", "Sara Coach", "weight_loss")
	seedTrainer(t, store, "trainer-2", "Ali Strong", "strength_training", "bodybuilding")
	seedTrainer(t, store, "trainer-3", "Mina Flex", "yoga")

	dispatcher := &recordingDispatcher{}
	service := NewMatchService(store.MatchRequests(), store.Trainers(), dispatcher, nil, time.Second)
	return service, store, dispatcher
}

func newTestScheduleService(now time.Time) (*ScheduleService, *memstore.Store, *recordingDispatcher) {
	store := memstore.New()
	dispatcher := &recordingDispatcher{}
	service := NewScheduleService(store.Appointments(), dispatcher, nil, time.Second)
	clock := &fixedClock{now: now}
	service.now = clock.Now
	return service, store, dispatcher
}

func mustTime(t *testing.T, value string) models.TimeOfDay {
	t.Helper()
	parsed, err := models.ParseTimeOfDay(value)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q): %v", value, err)
	}
	return parsed
}
