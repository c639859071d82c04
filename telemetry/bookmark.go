package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkYieldBreakthrough BookmarkType = "yield_breakthrough"
	BookmarkCropLoss          BookmarkType = "crop_loss"
	BookmarkEnergySpike       BookmarkType = "energy_spike"
	BookmarkDeviceOutage      BookmarkType = "device_outage"
	BookmarkStableClimate     BookmarkType = "stable_climate"
)

// Bookmark marks a notable summary window of one zone.
type Bookmark struct {
	Type        BookmarkType `csv:"type" json:"type"`
	Tick        int          `csv:"tick" json:"tick"`
	Zone        string       `csv:"zone" json:"zone"`
	Description string       `csv:"description" json:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"zone", b.Zone,
		"description", b.Description,
	)
}

type zoneHistory struct {
	history     []ZoneSummary
	historyIdx  int
	historyFull bool

	stableWindows int
	outage        bool
}

func (h *zoneHistory) add(s ZoneSummary) {
	h.history[h.historyIdx] = s
	h.historyIdx = (h.historyIdx + 1) % len(h.history)
	if h.historyIdx == 0 {
		h.historyFull = true
	}
}

func (h *zoneHistory) get() []ZoneSummary {
	if h.historyFull {
		return h.history
	}
	return h.history[:h.historyIdx]
}

// BookmarkDetector detects notable windows in zone summaries. Each zone
// keeps its own rolling history.
type BookmarkDetector struct {
	historySize int
	zones       map[string]*zoneHistory
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for stable climate detection
	}
	return &BookmarkDetector{
		historySize: historySize,
		zones:       make(map[string]*zoneHistory),
	}
}

// Check analyzes the latest summary and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(s ZoneSummary) []Bookmark {
	h, ok := bd.zones[s.Zone]
	if !ok {
		h = &zoneHistory{history: make([]ZoneSummary, bd.historySize)}
		bd.zones[s.Zone] = h
	}

	var bookmarks []Bookmark
	for _, check := range []func(*zoneHistory, ZoneSummary) *Bookmark{
		checkYieldBreakthrough,
		checkCropLoss,
		checkEnergySpike,
		checkDeviceOutage,
		checkStableClimate,
	} {
		if b := check(h, s); b != nil {
			b.Zone = s.Zone
			b.Tick = s.WindowEndTick
			bookmarks = append(bookmarks, *b)
		}
	}

	h.add(s)
	return bookmarks
}

func checkYieldBreakthrough(h *zoneHistory, s ZoneSummary) *Bookmark {
	if s.Harvests == 0 {
		return nil
	}
	var sum float64
	var n int
	for _, p := range h.get() {
		if p.Harvests > 0 {
			sum += p.BudsG / float64(p.Harvests)
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	cur := s.BudsG / float64(s.Harvests)
	if avg > 0 && cur > avg*1.5 {
		return &Bookmark{
			Type:        BookmarkYieldBreakthrough,
			Description: fmt.Sprintf("Yield %.1f g/plant is %.1fx average (%.1f)", cur, cur/avg, avg),
		}
	}
	return nil
}

func checkCropLoss(_ *zoneHistory, s ZoneSummary) *Bookmark {
	total := s.Plants + s.Deaths + s.Harvests - s.Replanted
	if s.Deaths < 2 || total <= 0 {
		return nil
	}
	share := float64(s.Deaths) / float64(total)
	if share > 0.30 {
		return &Bookmark{
			Type:        BookmarkCropLoss,
			Description: fmt.Sprintf("%d plants died (%.0f%% of the crop)", s.Deaths, share*100),
		}
	}
	return nil
}

func checkEnergySpike(h *zoneHistory, s ZoneSummary) *Bookmark {
	history := h.get()
	if len(history) < 3 {
		return nil
	}
	var sum float64
	for _, p := range history {
		sum += p.EnergyKWh
	}
	avg := sum / float64(len(history))
	if avg > 0 && s.EnergyKWh > avg*2 {
		return &Bookmark{
			Type:        BookmarkEnergySpike,
			Description: fmt.Sprintf("Energy %.1f kWh is %.1fx average (%.1f)", s.EnergyKWh, s.EnergyKWh/avg, avg),
		}
	}
	return nil
}

// checkDeviceOutage fires once when at least half the devices are broken
// and re-arms after recovery.
func checkDeviceOutage(h *zoneHistory, s ZoneSummary) *Bookmark {
	down := s.Devices > 0 && s.BrokenDevices*2 >= s.Devices
	fire := down && !h.outage
	h.outage = down
	if !fire {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkDeviceOutage,
		Description: fmt.Sprintf("%d of %d devices broken", s.BrokenDevices, s.Devices),
	}
}

func checkStableClimate(h *zoneHistory, s ZoneSummary) *Bookmark {
	if s.Plants == 0 {
		h.stableWindows = 0
		return nil
	}
	history := h.get()
	if len(history) < 4 {
		return nil
	}

	recent := history[len(history)-4:]
	var sum float64
	for _, p := range recent {
		sum += p.TemperatureMean
	}
	mean := sum / 4
	var variance float64
	for _, p := range recent {
		d := p.TemperatureMean - mean
		variance += d * d
	}
	variance /= 4

	if variance < 0.25 && s.TemperatureMax-s.TemperatureMin < 3 {
		h.stableWindows++
	} else {
		h.stableWindows = 0
	}

	if h.stableWindows == 5 { // trigger exactly once at 5 windows
		return &Bookmark{
			Type:        BookmarkStableClimate,
			Description: fmt.Sprintf("Stable climate around %.1f °C with %d plants over 5+ windows", mean, s.Plants),
		}
	}
	return nil
}
