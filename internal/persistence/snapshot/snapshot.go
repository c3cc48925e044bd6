package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 is the durable world state. Everything the simulation needs to
// resume deterministically is in here. Derived values (speeds, power draw,
// sampled conditions) are recomputed on import, so snapshots are only cut
// on rare-tick boundaries, where the live caches were just refreshed.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed          int64  `json:"seed"`
	TickRate      int    `json:"tick_rate_hz"`
	TicksPerDay   int    `json:"ticks_per_day"`
	TicksPerHour  int    `json:"ticks_per_hour"`
	CatalogDigest string `json:"catalog_digest"`

	Weather WeatherV1 `json:"weather"`

	Containers    []ContainerV1 `json:"containers"`
	Stockpile     []BatchV1     `json:"stockpile,omitempty"`
	RebuildOrders []RebuildV1   `json:"rebuild_orders,omitempty"`

	Counters CountersV1 `json:"counters"`
}

type WeatherV1 struct {
	Kind      string `json:"kind"`
	UntilTick uint64 `json:"until_tick"`
}

type CountersV1 struct {
	NextContainer uint64 `json:"next_container"`
	NextEvent     uint64 `json:"next_event"`
}

type SiteV1 struct {
	Roof              float64 `json:"roof"`
	Indoor            bool    `json:"indoor,omitempty"`
	TemperatureOffset float64 `json:"temperature_offset,omitempty"`
}

type ContainerV1 struct {
	ID        string `json:"id"`
	Processor string `json:"processor"`
	Site      SiteV1 `json:"site"`

	Processes     []ProcessV1         `json:"processes"`
	Enabled       map[string][]string `json:"enabled,omitempty"`
	CachedQuality map[string]string   `json:"cached_quality,omitempty"`

	EmptyNow  bool    `json:"empty_now,omitempty"`
	FlickedOn bool    `json:"flicked_on"`
	PowerOn   bool    `json:"power_on"`
	Fuel      float64 `json:"fuel,omitempty"`
	Destroyed bool    `json:"destroyed,omitempty"`
	RNG       []byte  `json:"rng,omitempty"`
}

type ProcessV1 struct {
	Process         string    `json:"process"`
	Ticks           int64     `json:"ticks"`
	IngredientCount int       `json:"ingredient_count"`
	Ingredients     []BatchV1 `json:"ingredients"`
	TargetQuality   string    `json:"target_quality"`
	RuinedPercent   float64   `json:"ruined_percent"`
}

type BatchV1 struct {
	ID    string   `json:"id"`
	Item  string   `json:"item"`
	Count int      `json:"count"`
	Tags  []string `json:"tags,omitempty"`
	// Quality is empty for unstamped batches.
	Quality string `json:"quality,omitempty"`
}

type RebuildV1 struct {
	Processor string `json:"processor"`
	Site      SiteV1 `json:"site"`
	Tick      uint64 `json:"tick"`
}

func WriteSnapshot(path string, snap SnapshotV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line is duplicated inside the gob payload.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the leading JSON line, for listings.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// ProcessCount sums live processes across containers.
func (s SnapshotV1) ProcessCount() int {
	n := 0
	for _, c := range s.Containers {
		n += len(c.Processes)
	}
	return n
}
