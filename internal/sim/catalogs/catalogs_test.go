package catalogs

import (
	"strings"
	"testing"

	"github.com/Syrchalis/ProcessorFramework/internal/sim/process/quality"
)

func def(id, product string, items ...string) ProcessDef {
	d := DefaultProcessDef()
	d.ID, d.Product, d.Ingredients = id, product, items
	return d
}

func hasWarning(c *Catalogs, parts ...string) bool {
	for _, w := range c.Warnings {
		ok := true
		for _, p := range parts {
			ok = ok && strings.Contains(w, p)
		}
		if ok {
			return true
		}
	}
	return false
}

func TestFromPack_DropsBrokenDefsAndContinues(t *testing.T) {
	badQuality := def("vinegar", "VINEGAR", "WINE")
	badQuality.UsesQuality = true
	badQuality.QualityDays = quality.Days{5, 4, 3, 2, 1, 0, 0}
	badTemp := def("ice", "ICE", "WATER")
	badTemp.TemperatureSafe = FloatRange{Min: 10, Max: 0}

	pack := Pack{
		Processes: []ProcessDef{
			def("beer", "BEER", "WORT"),
			def("nothing", "", "WORT"),
			def("air", "AIR"),
			badQuality,
			badTemp,
		},
		Processors: []ProcessorDef{
			{ID: "BARREL", Capacity: 25, ProcessIDs: []string{"beer", "nothing"}},
			{ID: "BROKEN", Capacity: 25, ProcessIDs: []string{"air", "vinegar"}},
			{ID: "ZERO", Capacity: 0, ProcessIDs: []string{"beer"}},
		},
	}
	c, err := FromPack(pack)
	if err != nil {
		t.Fatalf("FromPack: %v", err)
	}

	if len(c.Processes.Order) != 1 || c.Processes.Order[0] != "beer" {
		t.Fatalf("surviving processes: %v", c.Processes.Order)
	}
	for _, want := range [][]string{
		{`process "nothing" dropped`, "Product"},
		{`process "air" dropped`, "Ingredients"},
		{`process "vinegar" dropped`, "QualityDays"},
		{`process "ice" dropped`, "TemperatureSafe"},
		{`processor "BARREL": process "nothing" unavailable`},
		{`processor "BROKEN" dropped: no usable processes`},
		{`processor "ZERO" dropped`, "Capacity"},
	} {
		if !hasWarning(c, want...) {
			t.Fatalf("missing warning %q in %q", want, c.Warnings)
		}
	}
	if len(c.Warnings) != 9 {
		t.Fatalf("warnings: %d %q", len(c.Warnings), c.Warnings)
	}

	barrel, ok := c.Processor("BARREL")
	if !ok || len(barrel.Processes) != 1 || barrel.Process("beer") == nil {
		t.Fatalf("BARREL: ok=%v %+v", ok, barrel)
	}
	if _, ok := c.Processor("BROKEN"); ok {
		t.Fatalf("BROKEN should have been dropped")
	}
	if _, ok := c.Processor("ZERO"); ok {
		t.Fatalf("ZERO should have been dropped")
	}
	if c.Digest == "" {
		t.Fatalf("empty digest")
	}
}

func TestFromPack_TemperatureIdealMustSitInsideSafe(t *testing.T) {
	wide := def("wine", "WINE", "GRAPES")
	wide.TemperatureIdeal = FloatRange{Min: -20, Max: 20}
	unused := wide
	unused.ID = "cider"
	unused.UsesTemperature = false

	c, err := FromPack(Pack{Processes: []ProcessDef{wide, unused}})
	if err != nil {
		t.Fatalf("FromPack: %v", err)
	}
	if _, ok := c.Process("wine"); ok || !hasWarning(c, `"wine" dropped`, "TemperatureIdeal") {
		t.Fatalf("wine kept or unwarned: %q", c.Warnings)
	}
	if _, ok := c.Process("cider"); !ok {
		t.Fatalf("temperature-free def should load: %q", c.Warnings)
	}
}

func TestFromPack_DuplicateIDIsFatal(t *testing.T) {
	_, err := FromPack(Pack{Processes: []ProcessDef{def("beer", "BEER", "WORT"), def("beer", "ALE", "WORT")}})
	if err == nil || !strings.Contains(err.Error(), "duplicate process id") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestDecodePack_RejectsMalformedFile(t *testing.T) {
	if _, err := DecodePack([]byte(`{"processes": "beer"}`)); err == nil {
		t.Fatalf("expected error for malformed catalog")
	}
	if _, err := DecodePack([]byte(`{"processes": [`)); err == nil {
		t.Fatalf("expected error for truncated json")
	}
}

func TestLoad_RepoConfigs(t *testing.T) {
	c, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Processors.Order) == 0 || c.Digest == "" {
		t.Fatalf("empty catalogs: %+v", c)
	}
	for _, id := range c.Processors.Order {
		if len(c.Processors.ByID[id].Processes) == 0 {
			t.Fatalf("processor %s has no processes", id)
		}
	}
}
