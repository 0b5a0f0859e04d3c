// Package controls maps the control panel buttons of an editable widget
// onto its interaction controller.
package controls

import (
	"errors"
	"fmt"

	"github.com/joeblew999/geoform/internal/geocodec"
	"github.com/joeblew999/geoform/internal/interaction"
)

// Action names a button.
type Action string

const (
	ActionDraw   Action = "draw"
	ActionModify Action = "modify"
	ActionClear  Action = "clear"
	ActionLocate Action = "locate"
)

var (
	ErrDisabled      = errors.New("control is disabled")
	ErrUnknownAction = errors.New("unknown control")
)

// Tooltips holds the localized text of each button.
type Tooltips struct {
	Draw   string `json:"draw,omitempty"`
	Modify string `json:"modify,omitempty"`
	Clear  string `json:"clear,omitempty"`
	Locate string `json:"locate,omitempty"`
}

// TooltipsFromDefs reads draw<Kind>Tooltip, modifyTooltip, clearTooltip
// and locateTooltip from widget definitions.
func TooltipsFromDefs(defs map[string]string, kind geocodec.Kind) Tooltips {
	return Tooltips{
		Draw:   defs["draw"+kind.Label()+"Tooltip"],
		Modify: defs["modifyTooltip"],
		Clear:  defs["clearTooltip"],
		Locate: defs["locateTooltip"],
	}
}

// Button is the rendered state of one control.
type Button struct {
	Action  Action `json:"action"`
	Tooltip string `json:"tooltip,omitempty"`
	Enabled bool   `json:"enabled"`
	Active  bool   `json:"active"`
}

// Locator recentres a map on the device position.
type Locator interface {
	Locate() error
}

// Panel has no state of its own: button flags are derived from the
// controller on every read.
type Panel struct {
	ctrl     *interaction.Controller
	tooltips Tooltips
	locator  Locator
}

// NewPanel creates a panel. ctrl is nil for read-only widgets, which only
// get the locate button.
func NewPanel(ctrl *interaction.Controller, tooltips Tooltips, locator Locator) *Panel {
	return &Panel{ctrl: ctrl, tooltips: tooltips, locator: locator}
}

// Buttons returns the buttons in display order.
func (p *Panel) Buttons() []Button {
	var buttons []Button
	if p.ctrl != nil {
		state := p.ctrl.State()
		active := p.ctrl.Interactions()
		buttons = append(buttons,
			Button{
				Action:  ActionDraw,
				Tooltip: p.tooltips.Draw,
				Enabled: state != interaction.Editing || p.ctrl.Multi(),
				Active:  active.Draw,
			},
			Button{
				Action:  ActionModify,
				Tooltip: p.tooltips.Modify,
				Enabled: state == interaction.Editing,
				Active:  active.Modify,
			},
			Button{
				Action:  ActionClear,
				Tooltip: p.tooltips.Clear,
				Enabled: state != interaction.Empty,
			},
		)
	}
	if p.locator != nil {
		buttons = append(buttons, Button{Action: ActionLocate, Tooltip: p.tooltips.Locate, Enabled: true})
	}
	return buttons
}

// Button returns the current state of one button.
func (p *Panel) Button(a Action) (Button, bool) {
	for _, b := range p.Buttons() {
		if b.Action == a {
			return b, true
		}
	}
	return Button{}, false
}

// Press performs a button action. Pressing draw while drawing cancels the
// draw; pressing modify toggles the modify interaction.
func (p *Panel) Press(a Action) error {
	b, ok := p.Button(a)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, a)
	}
	if !b.Enabled {
		return fmt.Errorf("%s: %w", a, ErrDisabled)
	}

	switch a {
	case ActionDraw:
		if b.Active {
			return p.ctrl.AbortDraw()
		}
		return p.ctrl.StartDraw()
	case ActionModify:
		return p.ctrl.SetModifyActive(!b.Active)
	case ActionClear:
		return p.ctrl.Clear()
	case ActionLocate:
		return p.locator.Locate()
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, a)
}
