package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Syrchalis/ProcessorFramework/internal/persistence/indexdb"
	"github.com/Syrchalis/ProcessorFramework/internal/persistence/snapshot"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/tuning"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	world.AuditLogger
	Close() error
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	Stats() indexdb.Stats
}

// openRuntimeIndex opens the read-model index. It never affects simulation
// determinism; a nil index just means nothing is indexed.
func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("PF_INDEX_BACKEND")))
	switch backend {
	case "", "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "none", "off", "disabled":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported PF_INDEX_BACKEND: %s", backend)
	}
}
