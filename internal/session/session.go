// Package session is the controller between input, the interaction state and
// the backend. All methods except the dispatcher handlers and the snapshot
// listener run on the render goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/galaxycore/galaxyview/internal/budget"
	"github.com/galaxycore/galaxyview/internal/dispatcher"
	"github.com/galaxycore/galaxyview/internal/geo"
	"github.com/galaxycore/galaxyview/internal/layout"
	"github.com/galaxycore/galaxyview/internal/notice"
	"github.com/galaxycore/galaxyview/internal/render"
	"github.com/galaxycore/galaxyview/internal/selection"
	"github.com/galaxycore/galaxyview/internal/snapshot"
	"github.com/galaxycore/galaxyview/internal/viewport"
	"github.com/galaxycore/galaxyview/pkg/core"
)

// ErrNoSnapshot is returned by actions attempted before the first snapshot arrives.
var ErrNoSnapshot = errors.New("galaxy not loaded yet")

// Submitter sends a command to the backend.
type Submitter interface {
	Submit(ctx context.Context, cmd core.Command) (core.CommandResult, error)
}

// Telemetry receives command outcomes. Optional.
type Telemetry interface {
	RecordCommand(kind, outcome string, took time.Duration)
}

// Dependencies holds everything the session needs.
type Dependencies struct {
	Cache      *snapshot.Cache
	Submitter  Submitter
	Dispatcher *dispatcher.Dispatcher
	Inbox      *notice.Inbox
	Logger     *slog.Logger
	Telemetry  Telemetry

	// Refresh asks for an out-of-band snapshot refresh, typically poller.Service.Trigger.
	Refresh func()

	Viewport      viewport.Config
	Layout        layout.Config
	Width, Height float64

	// SubmitTimeout bounds each command request.
	SubmitTimeout time.Duration
	// QueueSize is the per-kind dispatcher buffer.
	QueueSize int

	Now func() time.Time
}

// Panel identifies a budget editor.
type Panel int

const (
	NoPanel Panel = iota
	EconomyPanel
	TechPanel
)

type budgetDraft struct {
	panel  Panel
	target string
	alloc  budget.Allocation
}

// Session owns the viewport, the selection and any open editor.
type Session struct {
	deps Dependencies

	view    viewport.Viewport
	sel     selection.State
	ix      *core.Index
	cursor  geo.Point
	placed  []layout.Placed
	notices []notice.Notice
	pick    map[core.ShipClass]int
	draft   *budgetDraft

	latest      atomic.Pointer[core.Index]
	unsubscribe func()

	logged atomic.Pointer[logState]
}

type logState struct {
	turn int
	sel  string
}

// New registers one buffered dispatcher handler per command kind and
// subscribes to the snapshot cache.
func New(deps Dependencies) (*Session, error) {
	if deps.Cache == nil || deps.Submitter == nil || deps.Dispatcher == nil {
		return nil, errors.New("session: cache, submitter and dispatcher are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Inbox == nil {
		deps.Inbox = notice.NewInbox(5, 6*time.Second)
	}
	if deps.Refresh == nil {
		deps.Refresh = func() {}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.SubmitTimeout <= 0 {
		deps.SubmitTimeout = 15 * time.Second
	}
	if deps.QueueSize <= 0 {
		deps.QueueSize = 16
	}
	if deps.Width <= 0 || deps.Height <= 0 {
		deps.Width, deps.Height = 1280, 720
	}

	s := &Session{
		deps: deps,
		view: viewport.New(deps.Viewport, deps.Width, deps.Height),
	}

	for _, kind := range []string{
		core.KindMoveFleet,
		core.KindSendShips,
		core.KindUpdateBudget,
		core.KindDisbandFleet,
		core.KindCreateFleet,
	} {
		deps.Dispatcher.Register(kind, s.handleCommand, dispatcher.Buffered(deps.QueueSize), dispatcher.Logged())
	}

	s.unsubscribe = deps.Cache.Subscribe(func(ix *core.Index) { s.latest.Store(ix) })
	if ix := deps.Cache.Current(); ix != nil {
		s.latest.Store(ix)
	}
	return s, nil
}

// Close stops listening for snapshots.
func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// handleCommand runs on a dispatcher worker.
func (s *Session) handleCommand(e dispatcher.Event) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.SubmitTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.deps.Submitter.Submit(ctx, e.Command)
	took := time.Since(start)

	n := notice.FromError(e.Kind, err, s.deps.Now())
	n.Ref = notice.CommandRef(e.Kind)
	if err == nil {
		n.Message = acceptedMessage(e.Command, res)
		s.deps.Refresh()
	}
	s.deps.Inbox.Post(n)
	notice.Log(s.deps.Logger, n)
	if s.deps.Telemetry != nil {
		s.deps.Telemetry.RecordCommand(e.Kind, n.Level.String(), took)
	}
	// already reported through the inbox
	return res, nil
}

func acceptedMessage(cmd core.Command, res core.CommandResult) string {
	if res.Message != "" {
		return res.Message
	}
	switch c := cmd.(type) {
	case core.MoveFleet:
		return fmt.Sprintf("Fleet %s ordered to %s", c.FleetID, c.Destination)
	case core.SendShips:
		return fmt.Sprintf("Ships dispatched to %s", c.Destination)
	case core.UpdateBudget:
		return "Budget updated"
	case core.DisbandFleet:
		if v, ok := res.Data["metalRecovered"]; ok {
			return fmt.Sprintf("Fleet disbanded, %v metal recovered", v)
		}
		return "Fleet disbanded"
	case core.CreateFleet:
		return fmt.Sprintf("Fleet %s created", c.Name)
	default:
		return "Done"
	}
}

// Update adopts the newest snapshot, if any, and collects notices.
// Viewport and open pickers survive; only vanished selections are cleared.
func (s *Session) Update() {
	if ix := s.latest.Load(); ix != nil && ix != s.ix {
		s.ix = ix
		s.sel = s.sel.Reconcile(ix)
		s.reconcileDraft()
		s.placed = nil
	}
	s.notices = s.deps.Inbox.Collect(s.deps.Now())
	s.publishLogState()
}

func (s *Session) publishLogState() {
	var next logState
	if s.sel.Mode() != selection.Idle {
		next.sel = s.sel.String()
	}
	if s.ix != nil {
		next.turn = s.ix.Turn()
	}
	if cur := s.logged.Load(); cur == nil || *cur != next {
		s.logged.Store(&next)
	}
}

// LogState reports the turn and selection as of the last Update. It is safe
// to call from any goroutine.
func (s *Session) LogState() (int, string) {
	if cur := s.logged.Load(); cur != nil {
		return cur.turn, cur.sel
	}
	return 0, ""
}

func (s *Session) reconcileDraft() {
	if s.draft == nil || s.draft.panel != EconomyPanel {
		return
	}
	b, ok := s.ix.Body(core.BodyID(s.draft.target))
	if !ok || b.OwnerID != s.ix.Viewer() {
		s.draft = nil
	}
}

// Viewport returns the current view.
func (s *Session) Viewport() viewport.Viewport { return s.view }

// Selection returns the current interaction state.
func (s *Session) Selection() selection.State { return s.sel }

// Snapshot returns the snapshot in use, or nil before the first load.
func (s *Session) Snapshot() *core.Index { return s.ix }

// Notices returns the notices visible after the last Update.
func (s *Session) Notices() []notice.Notice { return s.notices }

func (s *Session) layoutNow() []layout.Placed {
	if s.placed == nil && s.ix != nil {
		s.placed = layout.Layout(s.ix.Snapshot(), s.view, s.deps.Layout)
	}
	return s.placed
}

func (s *Session) setView(v viewport.Viewport, ok bool) {
	if ok {
		s.view = v
		s.placed = nil
	}
}

// Resize follows the window size.
func (s *Session) Resize(w, h float64) { s.setView(s.view.Resize(w, h)) }

// ZoomAt zooms by factor keeping the world point under anchor fixed.
func (s *Session) ZoomAt(factor float64, anchor geo.Point) { s.setView(s.view.ZoomAt(factor, anchor)) }

// PanBy shifts the view in screen pixels.
func (s *Session) PanBy(dx, dy float64) { s.setView(s.view.PanBy(dx, dy)) }

// CenterOnSelection recenters the view on the selected body or fleet.
func (s *Session) CenterOnSelection() {
	for _, p := range s.layoutNow() {
		if b, ok := s.sel.Body(); ok && p.Kind == layout.KindBody && p.BodyID() == b {
			s.setView(s.view.CenterOn(p.World))
			return
		}
		if f, ok := s.sel.Fleet(); ok && p.Kind == layout.KindFleet && p.FleetID() == f {
			s.setView(s.view.CenterOn(p.World))
			return
		}
	}
}

// MoveCursor records the pointer position for previews.
func (s *Session) MoveCursor(p geo.Point) { s.cursor = p }

func (s *Session) hit(p geo.Point, filter layout.Filter) (layout.Placed, bool) {
	return layout.HitTest(s.layoutNow(), p, s.deps.Layout.HitTolerancePx, s.view, filter)
}

// Click routes a primary click. While a destination is awaited only bodies
// are hit-tested.
func (s *Session) Click(p geo.Point) error {
	if s.ix == nil {
		return nil
	}
	var filter layout.Filter
	if s.sel.Mode() == selection.AwaitingDestination {
		filter = layout.Bodies
	}

	var (
		next selection.State
		cmds []core.Command
		err  error
	)
	target, ok := s.hit(p, filter)
	switch {
	case !ok:
		next, cmds, err = s.sel.ClickEmpty()
	case target.Kind == layout.KindBody:
		next, cmds, err = s.sel.ClickBody(s.ix, target.BodyID())
	default:
		next, cmds, err = s.sel.ClickFleet(s.ix, target.FleetID())
	}
	return s.apply(next, cmds, err, "")
}

// BeginDrag starts dragging the fleet under p. It reports false when there
// is no draggable fleet there, in which case the gesture is a plain click.
func (s *Session) BeginDrag(p geo.Point) bool {
	if s.ix == nil {
		return false
	}
	target, ok := s.hit(p, layout.Fleets)
	if !ok {
		return false
	}
	next, err := s.sel.DragStart(s.ix, target.FleetID())
	if err != nil {
		return false
	}
	s.sel = next
	return true
}

// EndDrag releases a drag over p.
func (s *Session) EndDrag(p geo.Point) error {
	if s.ix == nil || !s.sel.Dragging() {
		return nil
	}
	target, ok := s.hit(p, layout.Bodies)
	next, cmds, err := s.sel.DragRelease(s.ix, target.BodyID(), ok)
	return s.apply(next, cmds, err, core.KindMoveFleet)
}

// Cancel closes pickers and editors and clears the selection.
func (s *Session) Cancel() {
	s.sel = s.sel.Cancel()
	s.pick = nil
	s.draft = nil
}

// Send opens destination selection for the selected fleet.
func (s *Session) Send() error {
	if s.ix == nil {
		return s.fail(core.KindMoveFleet, ErrNoSnapshot)
	}
	next, err := s.sel.InvokeSend(s.ix)
	return s.apply(next, nil, err, core.KindMoveFleet)
}

// Dispatch opens the ship picker for the selected body with nothing picked.
func (s *Session) Dispatch() error {
	if s.ix == nil {
		return s.fail(core.KindSendShips, ErrNoSnapshot)
	}
	next, err := s.sel.InvokeDispatch(s.ix)
	if err == nil {
		s.pick = make(map[core.ShipClass]int)
	}
	return s.apply(next, nil, err, core.KindSendShips)
}

// Pick sets how many ships of class to dispatch, clamped to what is available.
func (s *Session) Pick(class core.ShipClass, n int) {
	if s.sel.Mode() != selection.AwaitingShipSelection {
		return
	}
	if s.pick == nil {
		s.pick = make(map[core.ShipClass]int)
	}
	avail := s.sel.AvailableShips(s.ix)[class]
	s.pick[class] = max(0, min(n, avail))
}

// AvailableShips returns what the open ship picker can dispatch.
func (s *Session) AvailableShips() map[core.ShipClass]int {
	if s.ix == nil {
		return nil
	}
	return s.sel.AvailableShips(s.ix)
}

// Picked returns the current ship pick.
func (s *Session) Picked() map[core.ShipClass]int {
	out := make(map[core.ShipClass]int, len(s.pick))
	for k, v := range s.pick {
		out[k] = v
	}
	return out
}

// ConfirmShips sends the picked ships to dest, optionally as a named fleet.
func (s *Session) ConfirmShips(dest core.BodyID, name string) error {
	if s.ix == nil {
		return s.fail(core.KindSendShips, ErrNoSnapshot)
	}
	next, cmds, err := s.sel.ConfirmShips(s.ix, dest, s.pick, name)
	if err == nil {
		s.pick = nil
	}
	return s.apply(next, cmds, err, core.KindSendShips)
}

// ConfirmShipsAt confirms the ship picker with the body under p as destination.
func (s *Session) ConfirmShipsAt(p geo.Point, name string) error {
	target, ok := s.hit(p, layout.Bodies)
	if !ok {
		return s.fail(core.KindSendShips, fmt.Errorf("%w: no body under cursor", selection.ErrInvalidDestination))
	}
	return s.ConfirmShips(target.BodyID(), name)
}

// CreateFleet forms an empty named fleet at the selected body.
func (s *Session) CreateFleet(name string) error {
	body, ok := s.sel.Body()
	if !ok || s.sel.Mode() != selection.BodySelected {
		return s.fail(core.KindCreateFleet, fmt.Errorf("%w: no body selected", selection.ErrUnavailable))
	}
	b, _ := s.ix.Body(body)
	if b.OwnerID != s.ix.Viewer() {
		return s.fail(core.KindCreateFleet, fmt.Errorf("%w: body %s is not yours", selection.ErrUnavailable, body))
	}
	return s.submit(core.CreateFleet{Name: strings.TrimSpace(name), Origin: body})
}

// DisbandFleet disbands the selected fleet, which must be the viewer's.
func (s *Session) DisbandFleet() error {
	id, ok := s.sel.Fleet()
	if !ok || s.sel.Mode() != selection.FleetSelected {
		return s.fail(core.KindDisbandFleet, fmt.Errorf("%w: no fleet selected", selection.ErrUnavailable))
	}
	f, _ := s.ix.Fleet(id)
	if f.OwnerID != s.ix.Viewer() {
		return s.fail(core.KindDisbandFleet, fmt.Errorf("%w: fleet %s is not yours", selection.ErrUnavailable, id))
	}
	return s.submit(core.DisbandFleet{FleetID: id})
}

// OpenTechBudget opens the research allocation editor, starting from the
// viewer's current research budget or an even split when none is set.
func (s *Session) OpenTechBudget() error {
	if s.ix == nil {
		return s.fail(core.KindUpdateBudget, ErrNoSnapshot)
	}
	alloc, err := budget.New(budget.TechKeys, s.ix.Snapshot().Tech.Budget)
	if err != nil {
		if alloc, err = budget.Even(budget.TechKeys); err != nil {
			return s.fail(core.KindUpdateBudget, err)
		}
	}
	s.draft = &budgetDraft{panel: TechPanel, target: string(s.ix.Viewer()), alloc: alloc}
	return nil
}

// OpenEconomyBudget opens the economy allocation editor for the selected
// colony, starting from its current split or an even one when the snapshot
// carries none or an invalid one.
func (s *Session) OpenEconomyBudget() error {
	body, ok := s.sel.Body()
	if !ok || s.ix == nil {
		return s.fail(core.KindUpdateBudget, fmt.Errorf("%w: no body selected", selection.ErrUnavailable))
	}
	b, _ := s.ix.Body(body)
	if b.OwnerID != s.ix.Viewer() || b.State != core.BodyColonized {
		return s.fail(core.KindUpdateBudget, fmt.Errorf("%w: %s is not your colony", selection.ErrUnavailable, body))
	}
	alloc, err := budget.New(budget.EconomyKeys, b.Budget)
	if err != nil {
		if len(b.Budget) > 0 {
			s.deps.Logger.Debug("Ignoring invalid colony budget", "body", body, "error", err)
		}
		if alloc, err = budget.Even(budget.EconomyKeys); err != nil {
			return s.fail(core.KindUpdateBudget, err)
		}
	}
	s.draft = &budgetDraft{panel: EconomyPanel, target: string(body), alloc: alloc}
	return nil
}

// Budget returns the open allocation editor.
func (s *Session) Budget() (Panel, budget.Allocation, bool) {
	if s.draft == nil {
		return NoPanel, budget.Allocation{}, false
	}
	return s.draft.panel, s.draft.alloc, true
}

// SetAllocation edits one allocation, redistributing the rest.
func (s *Session) SetAllocation(key string, value int) error {
	if s.draft == nil {
		return nil
	}
	next, err := s.draft.alloc.Set(key, value)
	if err != nil {
		return s.fail(core.KindUpdateBudget, err)
	}
	s.draft.alloc = next
	return nil
}

// CommitBudget submits the open editor and closes it. An allocation that does
// not sum to 100 is refused locally and the editor stays open.
func (s *Session) CommitBudget() error {
	if s.draft == nil {
		return nil
	}
	cmd, err := s.draft.alloc.Commit(s.draft.target)
	if err != nil {
		return s.fail(core.KindUpdateBudget, err)
	}
	s.draft = nil
	return s.submit(cmd)
}

// CloseBudget discards the open editor.
func (s *Session) CloseBudget() { s.draft = nil }

// apply adopts next and submits cmds, or reports err and keeps the state the
// transition returned.
func (s *Session) apply(next selection.State, cmds []core.Command, err error, kind string) error {
	s.sel = next
	if s.sel.Mode() != selection.AwaitingShipSelection {
		s.pick = nil
	}
	if err != nil {
		return s.fail(kind, err)
	}
	for _, cmd := range cmds {
		if err := s.submit(cmd); err != nil {
			return err
		}
	}
	return nil
}

// submit hands cmd to the dispatcher. The result arrives later as a notice.
func (s *Session) submit(cmd core.Command) error {
	if err := cmd.Validate(); err != nil {
		return s.fail(cmd.Kind(), err)
	}
	if _, err := s.deps.Dispatcher.Submit(cmd); err != nil {
		return s.fail(cmd.Kind(), err)
	}
	return nil
}

func (s *Session) fail(kind string, err error) error {
	n := notice.FromError(kind, err, s.deps.Now())
	s.deps.Inbox.Post(n)
	notice.Log(s.deps.Logger, n)
	return err
}

// Frame assembles everything the renderer needs for this frame.
func (s *Session) Frame() render.Frame {
	f := render.Frame{
		Viewport:  s.view,
		Selection: s.sel,
		Index:     s.ix,
		Status:    s.deps.Cache.Status(),
		Layout:    s.deps.Layout,
		Placed:    s.layoutNow(),
		Cursor:    s.cursor,
		Notices:   s.notices,
	}
	if s.sel.Mode() == selection.AwaitingShipSelection {
		f.PickerShipsText = pickerText(s.sel.AvailableShips(s.ix), s.pick)
	}
	if s.draft != nil {
		f.Budget = budgetPanel(s.draft)
	}
	return f
}

func pickerText(avail, picked map[core.ShipClass]int) string {
	classes := make([]string, 0, len(avail))
	for c := range avail {
		classes = append(classes, string(c))
	}
	sort.Strings(classes)
	parts := make([]string, 0, len(classes))
	for _, c := range classes {
		parts = append(parts, fmt.Sprintf("%s %d/%d", c, picked[core.ShipClass(c)], avail[core.ShipClass(c)]))
	}
	return "Ships: " + strings.Join(parts, ", ")
}

func budgetPanel(d *budgetDraft) *render.BudgetPanel {
	title := "Research budget"
	if d.panel == EconomyPanel {
		title = "Economy budget for " + d.target
	}
	p := &render.BudgetPanel{Title: title, Sum: d.alloc.Sum()}
	for _, k := range d.alloc.Keys() {
		v := d.alloc.Get(k)
		p.Rows = append(p.Rows, render.BudgetRow{Key: k, Nominal: v, Effective: budget.Effective(float64(v))})
	}
	return p
}
