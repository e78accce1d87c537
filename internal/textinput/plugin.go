package textinput

import (
	"log/slog"

	"textbridge/internal/channel"
	"textbridge/internal/keyevent"
	"textbridge/internal/osk"
	"textbridge/internal/textmodel"
)

// State is the binding state of a Plugin.
type State int

const (
	// Unbound means no client is set and there is no model.
	Unbound State = iota
	// BoundEmpty means a client is set and its model is still pristine.
	BoundEmpty
	// BoundEditing means the model has been set by the engine or edited by
	// a key press since the client was bound.
	BoundEditing
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case BoundEmpty:
		return "bound-empty"
	case BoundEditing:
		return "bound-editing"
	default:
		return "unknown"
	}
}

// Plugin is the text input bridge for one engine.
type Plugin struct {
	channel *channel.MethodChannel
	panel   osk.Panel
	logger  *slog.Logger

	clientID int
	config   ClientConfig
	model    *textmodel.Model
	edited   bool
}

// New returns a plugin answering text input calls on messenger. A nil
// panel disables show and hide.
func New(messenger channel.BinaryMessenger, panel osk.Panel, logger *slog.Logger) *Plugin {
	if panel == nil {
		panel = osk.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Plugin{
		channel:  channel.NewMethodChannel(messenger, ChannelName),
		panel:    panel,
		logger:   logger,
		clientID: NoClient,
	}
	p.channel.SetMethodCallHandler(p.handleMethodCall)
	return p
}

// Close unregisters the plugin from its messenger.
func (p *Plugin) Close() {
	p.channel.SetMethodCallHandler(nil)
}

// State returns the current binding state.
func (p *Plugin) State() State {
	switch {
	case p.model == nil:
		return Unbound
	case p.edited:
		return BoundEditing
	default:
		return BoundEmpty
	}
}

// ClientID returns the bound client id, or NoClient.
func (p *Plugin) ClientID() int {
	return p.clientID
}

// Config returns the bound client's configuration.
func (p *Plugin) Config() ClientConfig {
	return p.config
}

// Active reports whether a model exists for key events to edit.
func (p *Plugin) Active() bool {
	return p.model != nil
}

// EditingState returns a snapshot of the model. ok is false when unbound.
func (p *Plugin) EditingState() (s textmodel.State, ok bool) {
	if p.model == nil {
		return textmodel.State{}, false
	}
	return p.model.State(), true
}

func (p *Plugin) handleMethodCall(call *channel.MethodCall, result channel.MethodResult) {
	switch call.Method {
	case MethodSetClient:
		p.setClient(call, result)
	case MethodSetEditingState:
		p.setEditingState(call, result)
	case MethodClearClient:
		p.clearClient()
		result.Success(nil)
	case MethodShow:
		p.setPanelVisible(true)
		result.Success(nil)
	case MethodHide:
		p.setPanelVisible(false)
		result.Success(nil)
	default:
		p.logger.Debug("method not implemented", "method", call.Method)
		result.NotImplemented()
	}
}

func (p *Plugin) setClient(call *channel.MethodCall, result channel.MethodResult) {
	id, cfg, err := decodeSetClient(call.Args)
	if err != nil {
		p.logger.Warn("rejected setClient", "error", err)
		replyError(result, badArguments("could not set client: %v", err))
		return
	}
	p.clientID = id
	p.config = cfg
	p.model = textmodel.New()
	p.edited = false
	p.logger.Debug("client set",
		"client", id,
		"input_type", cfg.InputType.Name,
		"input_action", cfg.InputAction)
	result.Success(nil)
}

func (p *Plugin) setEditingState(call *channel.MethodCall, result channel.MethodResult) {
	if p.model == nil {
		replyError(result, internalConsistency("set editing state has been invoked, but no client is set"))
		return
	}
	state, err := decodeEditingState(call.Args)
	if err != nil {
		p.logger.Warn("rejected setEditingState", "error", err)
		replyError(result, badArguments("could not set editing state: %v", err))
		return
	}
	if err := p.model.SetState(state); err != nil {
		p.logger.Warn("rejected setEditingState", "error", err)
		replyError(result, badArguments("%v", err))
		return
	}
	p.edited = true
	p.logger.Debug("editing state set",
		"client", p.clientID,
		"text_len", p.model.Len(),
		"selection", p.model.Selection().String())
	result.Success(nil)
}

func (p *Plugin) clearClient() {
	if p.clientID != NoClient {
		p.logger.Debug("client cleared", "client", p.clientID)
	}
	p.clientID = NoClient
	p.config = ClientConfig{}
	p.model = nil
	p.edited = false
}

func (p *Plugin) setPanelVisible(visible bool) {
	if p.model == nil {
		return
	}
	var err error
	if visible {
		err = p.panel.Show()
	} else {
		err = p.panel.Hide()
	}
	if err != nil {
		p.logger.Warn("toggle on-screen keyboard", "visible", visible, "error", err)
	}
}

// HandleKey applies a key transition to the model. Releases are ignored
// and so is every event while no client is bound.
func (p *Plugin) HandleKey(sym keyevent.Keysym, state keyevent.State, mods keyevent.Modifiers) {
	if p.model == nil || state != keyevent.StatePressed {
		return
	}
	action := keyevent.Resolve(sym, mods)
	if action.Kind == keyevent.ActionEnter {
		p.EnterPressed()
		return
	}
	if p.Apply(action) {
		p.sendStateUpdate()
	}
}

// Apply performs action on the model and reports whether it changed.
// Enter is not handled here; see EnterPressed.
func (p *Plugin) Apply(action keyevent.Action) bool {
	if p.model == nil {
		return false
	}
	var changed bool
	switch action.Kind {
	case keyevent.ActionInsert:
		p.model.AddCodePoint(action.Rune)
		changed = true
	case keyevent.ActionBackspace:
		changed = p.model.Backspace()
	case keyevent.ActionDelete:
		changed = p.model.Delete()
	case keyevent.ActionMoveBack:
		changed = p.model.MoveCursorBack()
	case keyevent.ActionMoveForward:
		changed = p.model.MoveCursorForward()
	case keyevent.ActionMoveToBeginning:
		changed = p.model.MoveCursorToBeginning()
	case keyevent.ActionMoveToEnd:
		changed = p.model.MoveCursorToEnd()
	}
	if changed {
		p.edited = true
	}
	return changed
}

// EnterPressed inserts a newline in multiline fields and reports the
// input action for every other field.
func (p *Plugin) EnterPressed() {
	if p.model == nil {
		return
	}
	if p.config.InputType.Multiline() {
		p.model.AddCodePoint('\n')
		p.edited = true
		p.sendStateUpdate()
		return
	}
	p.invoke(MethodPerformAction, []any{p.clientID, p.config.InputAction})
}

func (p *Plugin) sendStateUpdate() {
	if p.clientID == NoClient {
		return
	}
	p.invoke(MethodUpdateEditingState, []any{p.clientID, p.model.State()})
}

func (p *Plugin) invoke(method string, args []any) {
	if err := p.channel.InvokeMethod(method, args, nil); err != nil {
		p.logger.Warn("send to engine", "method", method, "error", err)
	}
}
