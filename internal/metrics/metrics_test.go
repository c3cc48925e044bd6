package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Syrchalis/ProcessorFramework/internal/persistence/indexdb"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/world"
)

var _ world.MetricsSink = (*Collector)(nil)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status=%d", rec.Code)
	}
	b, _ := io.ReadAll(rec.Body)
	return string(b)
}

func TestCollector_CountersAndGauges(t *testing.T) {
	c := New("w1")
	c.WatchWorld("w1", func() world.WorldMetrics {
		return world.WorldMetrics{Tick: 1234, Containers: 3, QueueDepths: world.QueueDepths{Inbox: 7}}
	})
	c.WatchIndex(func() indexdb.Stats { return indexdb.Stats{QueueCapacity: 65536, DropTickTotal: 2} })

	c.ObserveStep(0.8)
	c.Signal(process.SignalBecameEmpty, "FERMENTING_BARREL")
	c.Extraction("FERMENTING_BARREL", "BEER", 25, false)
	c.Extraction("FERMENTING_BARREL", "BEER", 20, false)
	c.Command("FILL", "")
	c.Command("FILL", "E_NO_SPACE")

	body := scrape(t, c)
	for _, want := range []string{
		`processor_world_tick{world="w1"} 1234`,
		`processor_world_containers{world="w1"} 3`,
		`processor_world_queue_depth{queue="inbox",world="w1"} 7`,
		`processor_world_extracted_items_total{processor="FERMENTING_BARREL",product="BEER",ruined="false",world="w1"} 45`,
		`processor_world_extractions_total{processor="FERMENTING_BARREL",ruined="false",world="w1"} 2`,
		`processor_world_signals_total{kind="BECAME_EMPTY",processor="FERMENTING_BARREL",world="w1"} 1`,
		`processor_world_commands_total{code="OK",kind="FILL",world="w1"} 1`,
		`processor_world_commands_total{code="E_NO_SPACE",kind="FILL",world="w1"} 1`,
		`processor_world_step_seconds_count{world="w1"} 1`,
		`processor_index_dropped_ticks_total 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}
