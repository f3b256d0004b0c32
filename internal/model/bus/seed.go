package bus

import "time"

// Seed provides the demo routes shown by the mobile client.
func Seed() []Bus {
	now := time.Now().UTC()
	return []Bus{
		{
			ID:              "38",
			Route:           "Downtown Express",
			CurrentLocation: "Market Street & 3rd Street",
			Status:          OnTime,
			ETA:             IntPtr(3),
			Schedule: []ScheduleStop{
				{Time: "8:30 AM", Stop: "Home Station"},
				{Time: "8:45 AM", Stop: "Downtown Hub"},
				{Time: "9:00 AM", Stop: "Financial District"},
			},
			Capacity:    65,
			LastUpdated: now,
		},
		{
			ID:              "14",
			Route:           "Mission to Bay",
			CurrentLocation: "Mission Street & 16th Street",
			Status:          Delayed,
			ETA:             IntPtr(5),
			Schedule: []ScheduleStop{
				{Time: "9:00 AM", Stop: "Mission Station"},
				{Time: "9:20 AM", Stop: "Pier 39"},
				{Time: "9:40 AM", Stop: "Fisherman's Wharf"},
			},
			Capacity:    80,
			LastUpdated: now,
		},
		{
			ID:              "22",
			Route:           "The Castro Circuit",
			CurrentLocation: "Castro Street & Market Street",
			Status:          Planned,
			Schedule: []ScheduleStop{
				{Time: "1:30 PM", Stop: "Castro Station"},
				{Time: "1:45 PM", Stop: "Twin Peaks"},
				{Time: "2:00 PM", Stop: "Haight-Ashbury"},
			},
			LastUpdated: now,
		},
	}
}
