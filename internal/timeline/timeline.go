// Package timeline turns a case's raw event history into the classified,
// day-grouped view the console renders.
//
// The timeline is pull-based and independent of the plan store: an executed
// action shows up in the plan immediately but only enters the timeline on
// the next refresh. That gap is an intentional property of the system, not
// a bug to paper over.
package timeline

import (
	"sort"
	"strings"
	"time"

	"github.com/mhollis/caseline/internal/plan"
)

// Category assigns each event to the actor family that produced it.
type Category string

const (
	CategoryUser   Category = "user"
	CategoryReview Category = "review"
	CategoryAgent  Category = "agent"
)

// Classify maps an event to exactly one category.
//
// The rule: user_input events are "user"; action events whose action id
// contains the substring "review" (case-insensitive) are "review";
// everything else, including agent_plan and status_change, is "agent".
// The substring match is a crude but real business rule the backend relies
// on, kept here as one named, tested function.
func Classify(event plan.Event) Category {
	switch event.Type {
	case plan.EventUserInput:
		return CategoryUser
	case plan.EventAction:
		if strings.Contains(strings.ToLower(event.ActionID()), "review") {
			return CategoryReview
		}
		return CategoryAgent
	default:
		return CategoryAgent
	}
}

// Entry pairs an event with its resolved category.
type Entry struct {
	Event    plan.Event
	Category Category
}

// DayBucket is one contiguous calendar-day slice of the timeline, in
// ascending order, with members in ascending timestamp order.
type DayBucket struct {
	Label   string
	Day     time.Time
	Entries []Entry
}

// Aggregator accumulates a case's events: append-only, deduplicated by
// event id, sorted by ascending timestamp. Known events are never dropped
// or rewritten when a refresh arrives.
type Aggregator struct {
	seen   map[string]struct{}
	events []plan.Event
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{seen: map[string]struct{}{}}
}

// Merge folds newly fetched events into the aggregate. Events already known
// by id are ignored; the combined sequence is re-sorted by timestamp.
// Returns the number of events actually added.
func (a *Aggregator) Merge(fetched []plan.Event) int {
	added := 0
	for _, event := range fetched {
		if event.ID == "" {
			continue
		}
		if _, ok := a.seen[event.ID]; ok {
			continue
		}
		a.seen[event.ID] = struct{}{}
		a.events = append(a.events, event)
		added++
	}
	if added > 0 {
		sort.SliceStable(a.events, func(i, j int) bool {
			return a.events[i].Timestamp.Before(a.events[j].Timestamp)
		})
	}
	return added
}

// Len reports how many events the aggregator holds.
func (a *Aggregator) Len() int {
	return len(a.events)
}

// Events returns the accumulated events in ascending timestamp order.
func (a *Aggregator) Events() []plan.Event {
	out := make([]plan.Event, len(a.events))
	copy(out, a.events)
	return out
}

// Buckets partitions the accumulated events into day buckets relative to
// the supplied clock reading, labelled "Today", "Yesterday", or a calendar
// date. Buckets are emitted in ascending chronological order.
func (a *Aggregator) Buckets(now time.Time) []DayBucket {
	return Group(a.events, now)
}

// Group partitions an ascending event sequence into labelled day buckets.
// Events must already be sorted by timestamp; Aggregator maintains that.
func Group(events []plan.Event, now time.Time) []DayBucket {
	var buckets []DayBucket
	for _, event := range events {
		day := truncateToDay(event.Timestamp.In(now.Location()))
		if len(buckets) == 0 || !buckets[len(buckets)-1].Day.Equal(day) {
			buckets = append(buckets, DayBucket{
				Label: dayLabel(day, now),
				Day:   day,
			})
		}
		last := &buckets[len(buckets)-1]
		last.Entries = append(last.Entries, Entry{Event: event, Category: Classify(event)})
	}
	return buckets
}

func dayLabel(day, now time.Time) string {
	today := truncateToDay(now)
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return day.Format("Jan 2, 2006")
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
