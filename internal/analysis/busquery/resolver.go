// Package busquery answers rider questions from a bus directory snapshot
// without calling a language model.
package busquery

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/zhouzirui/luxbus/backend/internal/model/bus"
)

// Intent is the category a rider query resolves to.
type Intent string

const (
	IntentFastest  Intent = "fastest"
	IntentDelays   Intent = "delays"
	IntentSchedule Intent = "schedule"
	IntentCapacity Intent = "capacity"
	IntentHelp     Intent = "help"
)

// missingETA ranks buses without an ETA after every reported one.
const missingETA = 999

type keywordRule struct {
	intent   Intent
	keywords []string
}

// rules are checked in order and the first match wins, so "fastest bus
// during traffic" resolves to IntentFastest.
var rules = []keywordRule{
	{intent: IntentFastest, keywords: []string{"fastest", "quick"}},
	{intent: IntentDelays, keywords: []string{"traffic", "delay"}},
	{intent: IntentSchedule, keywords: []string{"schedule", "time"}},
	{intent: IntentCapacity, keywords: []string{"capacity", "crowded"}},
}

const (
	allDelayedReply = "All buses are currently experiencing delays. Please check the live updates for the latest information."
	noDelaysReply   = "Great news! All buses are currently running on time with no major traffic delays reported."
	noCapacityReply = "Capacity information is not available for any buses at the moment."
	helpReply       = "I'm here to help with your travel needs! I can assist with real-time bus tracking, route planning, traffic updates, schedules, and capacity information. What would you like to know?"

	// scheduleReply does not read Bus.Schedule; the mobile client renders
	// this exact listing.
	scheduleReply = "Here are the current schedules for all active routes:\n\n" +
		"**Bus 38 - Downtown Express**: Departing every 15 minutes\n" +
		"**Bus 14 - Mission to Bay**: Departing every 20 minutes\n" +
		"**Bus 22 - Castro Circuit**: Departing hourly starting at 1:30 PM"
)

// Classify maps a free-text query to an intent.
func Classify(query string) Intent {
	normalized := strings.ToLower(query)
	for _, rule := range rules {
		for _, word := range rule.keywords {
			if strings.Contains(normalized, word) {
				return rule.intent
			}
		}
	}
	return IntentHelp
}

// Synthesize answers query from the buses snapshot. It never fails and
// always returns displayable text. The buses slice is not modified.
func Synthesize(query string, buses []bus.Bus) string {
	switch Classify(query) {
	case IntentFastest:
		return fastestReply(buses)
	case IntentDelays:
		return delaysReply(buses)
	case IntentSchedule:
		return scheduleReply
	case IntentCapacity:
		return capacityReply(buses)
	default:
		return helpReply
	}
}

func fastestReply(buses []bus.Bus) string {
	onTime := filter(buses, func(b bus.Bus) bool { return b.Status == bus.OnTime })
	if len(onTime) == 0 {
		return allDelayedReply
	}

	sort.SliceStable(onTime, func(i, j int) bool {
		return etaOrMissing(onTime[i]) < etaOrMissing(onTime[j])
	})
	fastest := onTime[0]

	eta := "no reported ETA"
	if fastest.ETA != nil {
		eta = fmt.Sprintf("an ETA of %d minutes", *fastest.ETA)
	}

	return fmt.Sprintf("The fastest route is currently **%s** (Bus %s). It's %s with %s. The bus is currently at %s.",
		fastest.Route, fastest.ID, strings.ToLower(string(fastest.Status)), eta, fastest.CurrentLocation)
}

func delaysReply(buses []bus.Bus) string {
	delayed := filter(buses, func(b bus.Bus) bool { return b.Status == bus.Delayed })
	if len(delayed) == 0 {
		return noDelaysReply
	}

	labels := make([]string, 0, len(delayed))
	for _, b := range delayed {
		labels = append(labels, fmt.Sprintf("Bus %s (%s)", b.ID, b.Route))
	}

	return fmt.Sprintf("There are currently %d bus(es) experiencing delays: %s. Average delay is 5 minutes due to heavy traffic.",
		len(delayed), strings.Join(labels, ", "))
}

func capacityReply(buses []bus.Bus) string {
	reported := filter(buses, func(b bus.Bus) bool { return b.Capacity > 0 })
	if len(reported) == 0 {
		return noCapacityReply
	}

	lines := make([]string, 0, len(reported))
	for _, b := range reported {
		lines = append(lines, fmt.Sprintf("Bus %s: %d%% full", b.ID, b.Capacity))
	}
	return "Current bus capacity levels:\n\n" + strings.Join(lines, "\n")
}

func filter(buses []bus.Bus, keep func(bus.Bus) bool) []bus.Bus {
	out := make([]bus.Bus, 0, len(buses))
	for _, b := range buses {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

func etaOrMissing(b bus.Bus) int {
	if b.ETA == nil {
		return missingETA
	}
	return *b.ETA
}

type snapshotEntry struct {
	ID              string     `json:"id"`
	Route           string     `json:"route"`
	Status          bus.Status `json:"status"`
	CurrentLocation string     `json:"currentLocation"`
	ETA             *int       `json:"eta"`
	Capacity        int        `json:"capacity"`
}

// SnapshotContext renders the fields of each bus a language model needs to
// answer rider questions, as indented JSON.
func SnapshotContext(buses []bus.Bus) string {
	entries := make([]snapshotEntry, 0, len(buses))
	for _, b := range buses {
		entries = append(entries, snapshotEntry{
			ID:              b.ID,
			Route:           b.Route,
			Status:          b.Status,
			CurrentLocation: b.CurrentLocation,
			ETA:             b.ETA,
			Capacity:        b.Capacity,
		})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}
