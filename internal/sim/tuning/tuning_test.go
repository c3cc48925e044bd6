package tuning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Syrchalis/ProcessorFramework/internal/sim/process"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process/quality"
)

func TestLoad_RepoConfig(t *testing.T) {
	tune, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tune.TicksPerDay != 60000 || tune.TicksPerHour != 2500 {
		t.Fatalf("calendar: %+v", tune.Calendar())
	}
	if tune.DefaultTargetQuality != quality.Awful {
		t.Fatalf("default quality: %s", tune.DefaultTargetQuality)
	}
	if tune.RateModel().Ref.SnowRate.Max != 1.2 {
		t.Fatalf("snow reference: %+v", tune.RateModel().Ref.SnowRate)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("tick_rate_hz: 20\ndefault_target_quality: good\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tune, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tune.TickRateHz != 20 || tune.DefaultTargetQuality != quality.Good {
		t.Fatalf("overrides not applied: %+v", tune)
	}
	if tune.RareTickInterval != 250 || tune.InitialProcessState != process.InitialEnabled {
		t.Fatalf("defaults lost: %+v", tune)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"quality": "default_target_quality: shiny\n",
		"initial": "initial_process_state: sometimes\n",
		"rate":    "tick_rate_hz: 0\n",
	} {
		path := filepath.Join(dir, name+".yaml")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
