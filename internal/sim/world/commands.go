package world

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Syrchalis/ProcessorFramework/internal/protocol"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process/quality"
)

var (
	ErrUnknownContainer = errors.New("unknown container")
	ErrUnknownProcessor = errors.New("unknown processor")
	errNothingAccepted  = errors.New("nothing accepted")
	errNothingToEmpty   = errors.New("nothing ready to empty")
)

// cmdError carries the ACTION_RESULT code for a rejected command.
type cmdError struct {
	code string
	err  error
}

func (e *cmdError) Error() string { return e.err.Error() }
func (e *cmdError) Unwrap() error { return e.err }

func reject(code string, err error) error { return &cmdError{code: code, err: err} }

func rejectf(code, format string, args ...any) error {
	return reject(code, fmt.Errorf(format, args...))
}

// codeFor maps a command error to its protocol code.
func codeFor(err error) string {
	var ce *cmdError
	switch {
	case errors.As(err, &ce):
		return ce.code
	case errors.Is(err, ErrUnknownContainer), errors.Is(err, ErrUnknownProcessor), errors.Is(err, process.ErrUnknownProcess):
		return protocol.ErrNotFound
	case errors.Is(err, process.ErrUnsupported), errors.Is(err, process.ErrNotAccepted),
		errors.Is(err, process.ErrNoFuelTank), errors.Is(err, process.ErrNoPower):
		return protocol.ErrInvalidTarget
	}
	return protocol.ErrInternal
}

type cmdCtx struct {
	w       *World
	actor   string
	cmd     protocol.CmdMsg
	nowTick uint64
}

func (x *cmdCtx) audit(e AuditEntry) {
	e.Tick = x.nowTick
	e.Actor = x.actor
	x.w.audit(e)
}

// cmdHandler applies one command and returns the message for a successful
// ACTION_RESULT.
type cmdHandler func(x *cmdCtx) (string, error)

var cmdDispatch map[string]cmdHandler

func init() {
	cmdDispatch = map[string]cmdHandler{
		protocol.CmdPlace:            handlePlace,
		protocol.CmdRemove:           handleRemove,
		protocol.CmdFill:             handleFill,
		protocol.CmdEmpty:            handleEmpty,
		protocol.CmdSetQuality:       handleSetQuality,
		protocol.CmdEmptyNow:         handleEmptyNow,
		protocol.CmdToggleProcess:    handleToggleProcess,
		protocol.CmdToggleIngredient: handleToggleIngredient,
		protocol.CmdSetPower:         handleSetPower,
		protocol.CmdFlick:            handleFlick,
		protocol.CmdRefuel:           handleRefuel,
		protocol.CmdDebug:            handleDebug,
	}
}

func (w *World) applyCmd(actor string, cmd protocol.CmdMsg, nowTick uint64) {
	h := cmdDispatch[cmd.Kind]
	var (
		msg string
		err error
	)
	if h == nil {
		err = rejectf(protocol.ErrBadRequest, "unknown command kind %q", cmd.Kind)
	} else {
		msg, err = h(&cmdCtx{w: w, actor: actor, cmd: cmd, nowTick: nowTick})
	}
	code := ""
	if err != nil {
		code = codeFor(err)
		msg = err.Error()
	}
	if w.sink != nil {
		w.sink.Command(cmd.Kind, code)
	}
	w.eventToClient(actor, actionResult(nowTick, cmd.ID, err == nil, code, msg))
}

func actionResult(tick uint64, ref string, ok bool, code, message string) protocol.Event {
	if !protocol.IsKnownCode(code) {
		code = protocol.ErrInternal
	}
	return protocol.ActionResult(tick, ref, ok, code, message)
}

func (x *cmdCtx) container() (*placed, error) {
	if x.cmd.Container == "" {
		return nil, rejectf(protocol.ErrBadRequest, "missing container")
	}
	p := x.w.containers[x.cmd.Container]
	if p == nil {
		return nil, fmt.Errorf("%s: %w", x.cmd.Container, ErrUnknownContainer)
	}
	if p.c.Destroyed() {
		return nil, rejectf(protocol.ErrConflict, "%s is destroyed", x.cmd.Container)
	}
	return p, nil
}

// processDef resolves cmd.Process against the container's processor.
func (x *cmdCtx) processDef(p *placed) (*catalogs.ProcessDef, error) {
	if x.cmd.Process == "" {
		return nil, rejectf(protocol.ErrBadRequest, "missing process")
	}
	d := p.c.Def().Process(x.cmd.Process)
	if d == nil {
		return nil, fmt.Errorf("%s on %s: %w", x.cmd.Process, p.c.Def().ID, process.ErrUnsupported)
	}
	return d, nil
}

func (x *cmdCtx) on() bool { return x.cmd.On == nil || *x.cmd.On }

func handlePlace(x *cmdCtx) (string, error) {
	def, ok := x.w.catalogs.Processor(x.cmd.Processor)
	if !ok {
		return "", fmt.Errorf("%s: %w", x.cmd.Processor, ErrUnknownProcessor)
	}
	var site Site
	if x.cmd.Site != nil {
		site = Site{Roof: x.cmd.Site.Roof, Indoor: x.cmd.Site.Indoor, TemperatureOffset: x.cmd.Site.TemperatureOffset}
	}
	reason := ""
	if o, ok := x.w.takeRebuildOrder(def.ID); ok {
		reason = "rebuild"
		if x.cmd.Site == nil {
			site = o.Site
		}
	}
	p := x.w.placeContainer(def, site)
	x.audit(AuditEntry{Action: "PLACE", Container: p.c.ID(), Processor: def.ID, Reason: reason})
	return p.c.ID(), nil
}

func handleRemove(x *cmdCtx) (string, error) {
	if x.cmd.Container == "" {
		return "", rejectf(protocol.ErrBadRequest, "missing container")
	}
	p := x.w.containers[x.cmd.Container]
	if p == nil {
		return "", fmt.Errorf("%s: %w", x.cmd.Container, ErrUnknownContainer)
	}
	released := x.w.releaseContents(p)
	x.w.removeContainer(x.cmd.Container)
	x.audit(AuditEntry{Action: "REMOVE", Container: x.cmd.Container, Processor: p.c.Def().ID, Count: released})
	return fmt.Sprintf("released %d", released), nil
}

// releaseContents returns every ingredient still held by p to the
// stockpile.
func (w *World) releaseContents(p *placed) int {
	n := 0
	for _, pr := range p.c.Processes() {
		for _, b := range pr.Ingredients() {
			w.addToStockpile(b)
			n += b.Count
		}
	}
	return n
}

func handleFill(x *cmdCtx) (string, error) {
	p, err := x.container()
	if err != nil {
		return "", err
	}
	if x.cmd.Item == "" || x.cmd.Count <= 0 {
		return "", rejectf(protocol.ErrBadRequest, "fill needs item and count")
	}
	var def *catalogs.ProcessDef
	if x.cmd.Process != "" {
		if def, err = x.processDef(p); err != nil {
			return "", err
		}
		if !slices.Contains(p.c.EnabledItems(def.ID), x.cmd.Item) {
			return "", rejectf(protocol.ErrInvalidTarget, "%s not allowed for %s", x.cmd.Item, def.ID)
		}
	} else if def = p.c.ProcessFor(x.cmd.Item); def == nil {
		return "", rejectf(protocol.ErrInvalidTarget, "no enabled process takes %s", x.cmd.Item)
	}
	b := process.NewBatch(x.cmd.Item, x.cmd.Count, x.cmd.Tags...)
	n, _ := p.c.AddIngredient(b, def)
	if n == 0 {
		return "", reject(protocol.ErrNoSpace, errNothingAccepted)
	}
	x.audit(AuditEntry{Action: "FILL", Container: p.c.ID(), Processor: p.c.Def().ID, Process: def.ID, Item: x.cmd.Item, Count: n})
	return fmt.Sprintf("accepted %d", n), nil
}

func handleEmpty(x *cmdCtx) (string, error) {
	p, err := x.container()
	if err != nil {
		return "", err
	}
	xs := p.c.ExtractAll()
	if len(xs) == 0 {
		return "", reject(protocol.ErrConflict, errNothingToEmpty)
	}
	total := 0
	for _, ex := range xs {
		total += x.w.deliver(x.nowTick, x.actor, p, ex)
	}
	return fmt.Sprintf("extracted %d", total), nil
}

// deliver moves an extraction's output into the stockpile and records it.
func (w *World) deliver(nowTick uint64, actor string, p *placed, ex process.Extraction) int {
	entry := AuditEntry{Tick: nowTick, Actor: actor, Action: "EXTRACT", Container: p.c.ID(), Processor: p.c.Def().ID, Process: ex.Process}
	n := 0
	product := ""
	if ex.Product != nil {
		w.addToStockpile(*ex.Product)
		n = ex.Product.Count
		product = ex.Product.Item
		entry.Item, entry.Count = product, n
		if ex.Product.Quality != nil {
			entry.Quality = ex.Product.Quality.String()
		}
	}
	if ex.Ruined {
		entry.Reason = "ruined"
	}
	for _, b := range ex.Bonus {
		w.addToStockpile(b)
	}
	w.audit(entry)
	if w.sink != nil {
		if product == "" {
			if d, ok := w.catalogs.Process(ex.Process); ok {
				product = d.Product
			}
		}
		w.sink.Extraction(p.c.Def().ID, product, n, ex.Ruined)
	}
	return n
}

func handleSetQuality(x *cmdCtx) (string, error) {
	p, err := x.container()
	if err != nil {
		return "", err
	}
	d, err := x.processDef(p)
	if err != nil {
		return "", err
	}
	if !d.UsesQuality {
		return "", rejectf(protocol.ErrInvalidTarget, "%s does not use quality", d.ID)
	}
	t, err := quality.Parse(x.cmd.Quality)
	if err != nil {
		return "", reject(protocol.ErrBadRequest, err)
	}
	if err := p.c.SetTargetQuality(d.ID, t); err != nil {
		return "", err
	}
	return t.String(), nil
}

func handleEmptyNow(x *cmdCtx) (string, error) {
	p, err := x.container()
	if err != nil {
		return "", err
	}
	p.c.SetEmptyNow(x.on())
	if x.on() && !p.c.EmptyNow() {
		return "", rejectf(protocol.ErrConflict, "no quality process running")
	}
	return "", nil
}

func handleToggleProcess(x *cmdCtx) (string, error) {
	p, err := x.container()
	if err != nil {
		return "", err
	}
	if x.cmd.Process == "" {
		return "", rejectf(protocol.ErrBadRequest, "missing process")
	}
	return "", p.c.ToggleProcess(x.cmd.Process, x.on())
}

func handleToggleIngredient(x *cmdCtx) (string, error) {
	p, err := x.container()
	if err != nil {
		return "", err
	}
	if x.cmd.Process == "" || x.cmd.Item == "" {
		return "", rejectf(protocol.ErrBadRequest, "toggle ingredient needs process and item")
	}
	return "", p.c.ToggleIngredient(x.cmd.Process, x.cmd.Item, x.on())
}

func handleSetPower(x *cmdCtx) (string, error) {
	p, err := x.container()
	if err != nil {
		return "", err
	}
	return "", p.c.SetPowerOn(x.on())
}

func handleFlick(x *cmdCtx) (string, error) {
	p, err := x.container()
	if err != nil {
		return "", err
	}
	p.c.SetFlicked(x.on())
	return "", nil
}

func handleRefuel(x *cmdCtx) (string, error) {
	p, err := x.container()
	if err != nil {
		return "", err
	}
	if x.cmd.Amount <= 0 {
		return "", rejectf(protocol.ErrBadRequest, "refuel amount must be > 0")
	}
	took, err := p.c.Refuel(x.cmd.Amount)
	if err != nil {
		return "", err
	}
	if took <= 0 {
		return "", rejectf(protocol.ErrNoSpace, "fuel tank full")
	}
	return fmt.Sprintf("took %.2f", took), nil
}

func handleDebug(x *cmdCtx) (string, error) {
	p, err := x.container()
	if err != nil {
		return "", err
	}
	switch x.cmd.Debug {
	case protocol.DebugFinish:
		p.c.Finish()
	case protocol.DebugProgress:
		days := x.cmd.Days
		if days == 0 {
			days = 1
		}
		p.c.ProgressDays(days)
	case protocol.DebugFill:
		n, err := p.c.Fill()
		if err != nil {
			return "", err
		}
		if n == 0 {
			return "", reject(protocol.ErrNoSpace, errNothingAccepted)
		}
		x.audit(AuditEntry{Action: "FILL", Container: p.c.ID(), Processor: p.c.Def().ID, Count: n, Reason: "debug"})
		return fmt.Sprintf("accepted %d", n), nil
	case protocol.DebugEmpty:
		return handleEmpty(x)
	default:
		return "", rejectf(protocol.ErrBadRequest, "unknown debug op %q", x.cmd.Debug)
	}
	x.audit(AuditEntry{Action: "DEBUG_" + x.cmd.Debug, Container: p.c.ID(), Processor: p.c.Def().ID})
	return "", nil
}
