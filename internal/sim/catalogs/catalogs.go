package catalogs

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/processors.schema.json
var processorsSchemaJSON string

const processorsSchemaURL = "processors.schema.json"

type Catalogs struct {
	Processes  ProcessCatalog
	Processors ProcessorCatalog

	// Digest covers every catalog file in load order.
	Digest string

	// Warnings lists defs dropped during load. Loading continues past them.
	Warnings []string
}

type ProcessCatalog struct {
	Order []string
	ByID  map[string]*ProcessDef
}

type ProcessorCatalog struct {
	Order []string
	ByID  map[string]*ProcessorDef
}

// Pack is the on-disk shape of one catalog file.
type Pack struct {
	Processes  []ProcessDef   `json:"processes"`
	Processors []ProcessorDef `json:"processors"`
}

// Load reads <configDir>/processors.json and then every *.json file under
// <configDir>/processors.d in name order. Later files may add defs but not
// redefine ids.
func Load(configDir string) (*Catalogs, error) {
	files := []string{filepath.Join(configDir, "processors.json")}
	extra, err := listJSON(filepath.Join(configDir, "processors.d"))
	if err != nil {
		return nil, err
	}
	files = append(files, extra...)

	var concat bytes.Buffer
	packs := make([]namedPack, 0, len(files))
	for _, p := range files {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		concat.Write(raw)
		concat.WriteByte('\n')
		pack, err := DecodePack(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		packs = append(packs, namedPack{name: filepath.Base(p), pack: pack})
	}

	c, err := build(packs)
	if err != nil {
		return nil, err
	}
	c.Digest = sha256Hex(concat.Bytes())
	return c, nil
}

// FromPack builds catalogs from an in-memory pack, applying the same
// validation as Load.
func FromPack(p Pack) (*Catalogs, error) {
	c, err := build([]namedPack{{name: "inline", pack: p}})
	if err != nil {
		return nil, err
	}
	b, _ := json.Marshal(p)
	c.Digest = sha256Hex(b)
	return c, nil
}

// DecodePack validates raw against the catalog schema and decodes it.
func DecodePack(raw []byte) (Pack, error) {
	var pack Pack
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return pack, err
	}
	schema, err := processorsSchema()
	if err != nil {
		return pack, err
	}
	if err := schema.Validate(doc); err != nil {
		return pack, fmt.Errorf("schema: %w", err)
	}
	if err := json.Unmarshal(raw, &pack); err != nil {
		return pack, err
	}
	return pack, nil
}

var compiledSchema *jsonschema.Schema

func processorsSchema() (*jsonschema.Schema, error) {
	if compiledSchema != nil {
		return compiledSchema, nil
	}
	s, err := jsonschema.CompileString(processorsSchemaURL, processorsSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", processorsSchemaURL, err)
	}
	compiledSchema = s
	return s, nil
}

type namedPack struct {
	name string
	pack Pack
}

func build(packs []namedPack) (*Catalogs, error) {
	c := &Catalogs{
		Processes:  ProcessCatalog{ByID: map[string]*ProcessDef{}},
		Processors: ProcessorCatalog{ByID: map[string]*ProcessorDef{}},
	}
	v := newValidator()

	for _, np := range packs {
		for i := range np.pack.Processes {
			d := np.pack.Processes[i]
			if _, dup := c.Processes.ByID[d.ID]; dup {
				return nil, fmt.Errorf("%s: duplicate process id %q", np.name, d.ID)
			}
			if err := v.Struct(&d); err != nil {
				c.warnf("%s: process %q dropped: %s", np.name, d.ID, describe(err))
				continue
			}
			c.Processes.ByID[d.ID] = &d
			c.Processes.Order = append(c.Processes.Order, d.ID)
		}
	}

	for _, np := range packs {
		for i := range np.pack.Processors {
			p := np.pack.Processors[i]
			if _, dup := c.Processors.ByID[p.ID]; dup {
				return nil, fmt.Errorf("%s: duplicate processor id %q", np.name, p.ID)
			}
			if err := v.Struct(&p); err != nil {
				c.warnf("%s: processor %q dropped: %s", np.name, p.ID, describe(err))
				continue
			}
			p.Processes = p.Processes[:0]
			for _, id := range p.ProcessIDs {
				d, ok := c.Processes.ByID[id]
				if !ok {
					c.warnf("%s: processor %q: process %q unavailable, skipped", np.name, p.ID, id)
					continue
				}
				p.Processes = append(p.Processes, d)
			}
			if len(p.Processes) == 0 {
				c.warnf("%s: processor %q dropped: no usable processes", np.name, p.ID)
				continue
			}
			c.Processors.ByID[p.ID] = &p
			c.Processors.Order = append(c.Processors.Order, p.ID)
		}
	}
	return c, nil
}

func (c *Catalogs) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

// Processor looks up a processor def by id.
func (c *Catalogs) Processor(id string) (*ProcessorDef, bool) {
	p, ok := c.Processors.ByID[id]
	return p, ok
}

// Process looks up a process def by id.
func (c *Catalogs) Process(id string) (*ProcessDef, bool) {
	d, ok := c.Processes.ByID[id]
	return d, ok
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		d := sl.Current().Interface().(ProcessDef)
		if d.UsesQuality && !d.QualityDays.Ascending() {
			sl.ReportError(d.QualityDays, "QualityDays", "QualityDays", "ascending", "")
		}
		// Response ranges may run backwards (rain drying less), temperature ranges may not.
		if d.TemperatureSafe.Min > d.TemperatureSafe.Max {
			sl.ReportError(d.TemperatureSafe, "TemperatureSafe", "TemperatureSafe", "ordered", "")
		}
		if d.TemperatureIdeal.Min > d.TemperatureIdeal.Max {
			sl.ReportError(d.TemperatureIdeal, "TemperatureIdeal", "TemperatureIdeal", "ordered", "")
		}
		if d.UsesTemperature && (d.TemperatureIdeal.Min < d.TemperatureSafe.Min || d.TemperatureIdeal.Max > d.TemperatureSafe.Max) {
			sl.ReportError(d.TemperatureIdeal, "TemperatureIdeal", "TemperatureIdeal", "within_safe", "")
		}
	}, ProcessDef{})
	return v
}

func describe(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

func listJSON(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".json") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
