package telemetry

import "testing"

func hasBookmark(bookmarks []Bookmark, typ BookmarkType) bool {
	for _, bm := range bookmarks {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_YieldBreakthrough(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 4; i++ {
		bd.Check(ZoneSummary{Zone: "z", WindowEndTick: i * 24, Harvests: 4, BudsG: 40})
	}

	bookmarks := bd.Check(ZoneSummary{Zone: "z", WindowEndTick: 96, Harvests: 4, BudsG: 100})
	if !hasBookmark(bookmarks, BookmarkYieldBreakthrough) {
		t.Error("expected yield_breakthrough bookmark")
	}
	if bookmarks[0].Zone != "z" || bookmarks[0].Tick != 96 {
		t.Errorf("bookmark not stamped: %+v", bookmarks[0])
	}
}

func TestBookmarkDetector_CropLoss(t *testing.T) {
	bd := NewBookmarkDetector(10)

	bookmarks := bd.Check(ZoneSummary{Zone: "z", Plants: 4, Deaths: 4})
	if !hasBookmark(bookmarks, BookmarkCropLoss) {
		t.Error("expected crop_loss bookmark")
	}

	bookmarks = bd.Check(ZoneSummary{Zone: "z", Plants: 20, Deaths: 2})
	if hasBookmark(bookmarks, BookmarkCropLoss) {
		t.Error("10% loss should not trigger crop_loss")
	}
}

func TestBookmarkDetector_EnergySpike(t *testing.T) {
	bd := NewBookmarkDetector(10)
	for i := 0; i < 3; i++ {
		if got := bd.Check(ZoneSummary{Zone: "z", EnergyKWh: 10}); hasBookmark(got, BookmarkEnergySpike) {
			t.Fatal("steady energy should not trigger")
		}
	}
	if !hasBookmark(bd.Check(ZoneSummary{Zone: "z", EnergyKWh: 25}), BookmarkEnergySpike) {
		t.Error("expected energy_spike bookmark")
	}
}

func TestBookmarkDetector_DeviceOutageFiresOnce(t *testing.T) {
	bd := NewBookmarkDetector(10)

	if !hasBookmark(bd.Check(ZoneSummary{Zone: "z", Devices: 4, BrokenDevices: 2}), BookmarkDeviceOutage) {
		t.Fatal("expected device_outage bookmark")
	}
	if hasBookmark(bd.Check(ZoneSummary{Zone: "z", Devices: 4, BrokenDevices: 3}), BookmarkDeviceOutage) {
		t.Error("ongoing outage should not re-trigger")
	}
	bd.Check(ZoneSummary{Zone: "z", Devices: 4})
	if !hasBookmark(bd.Check(ZoneSummary{Zone: "z", Devices: 4, BrokenDevices: 4}), BookmarkDeviceOutage) {
		t.Error("outage after recovery should trigger again")
	}
}

func TestBookmarkDetector_StableClimate(t *testing.T) {
	bd := NewBookmarkDetector(10)

	stable := ZoneSummary{Zone: "z", Plants: 8, TemperatureMean: 24, TemperatureMin: 23.5, TemperatureMax: 24.5}
	found := 0
	for i := 0; i < 15; i++ {
		stable.WindowEndTick = i * 24
		if hasBookmark(bd.Check(stable), BookmarkStableClimate) {
			found++
		}
	}
	if found != 1 {
		t.Errorf("expected stable_climate exactly once, got %d", found)
	}
}

func TestBookmarkDetector_ZonesIndependent(t *testing.T) {
	bd := NewBookmarkDetector(10)
	for i := 0; i < 3; i++ {
		bd.Check(ZoneSummary{Zone: "a", EnergyKWh: 10})
	}
	if hasBookmark(bd.Check(ZoneSummary{Zone: "b", EnergyKWh: 100}), BookmarkEnergySpike) {
		t.Error("zone b has no history and must not spike against zone a")
	}
}
