// Package interaction drives the draw, modify and clear editing of the one
// feature of an editable widget and keeps the bound form field in step.
package interaction

import (
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geoform/internal/geocodec"
	"github.com/joeblew999/geoform/internal/mapview"
)

// State is the editing state of a widget.
type State int

const (
	Empty State = iota
	Drawing
	Editing
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Drawing:
		return "drawing"
	case Editing:
		return "editing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrFeatureExists     = errors.New("a feature already exists")
	ErrGeometryKind      = errors.New("geometry kind not allowed")
	ErrModifyInactive    = errors.New("modify interaction is off")
)

// TransitionError reports an operation rejected in the current state. It
// matches ErrInvalidTransition and its Cause.
type TransitionError struct {
	Op    string
	From  State
	Cause error
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("interaction: cannot %s while %s", e.Op, e.From)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TransitionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrInvalidTransition}
	}
	return []error{ErrInvalidTransition, e.Cause}
}

// Interactions reports which interactions are active.
type Interactions struct {
	Draw   bool `json:"draw"`
	Modify bool `json:"modify"`
}

// Change is delivered to Config.OnChange after every committed transition.
type Change struct {
	State        State
	Value        string
	Interactions Interactions
}

// Config wires a Controller.
type Config struct {
	Source *mapview.VectorSource
	Codec  *geocodec.Codec
	Sink   Sink

	// Kind is the single-part geometry kind being edited.
	Kind  geocodec.Kind
	Multi bool

	// OnChange runs with the controller locked and must not call back into it.
	OnChange func(Change)
}

// Controller is the state machine of one editable widget. The source it
// manages never holds more than one feature.
type Controller struct {
	source   *mapview.VectorSource
	codec    *geocodec.Codec
	sink     Sink
	kind     geocodec.Kind
	multi    bool
	onChange func(Change)

	mu      sync.Mutex
	state   State
	feature *geojson.Feature
	value   string
	draw    bool
	modify  bool
}

// New creates a controller. A feature already in the source becomes the
// edited feature and the controller starts in Editing.
func New(cfg Config) (*Controller, error) {
	kind := cfg.Kind.Single()
	if kind == "" || !kind.Supported() {
		return nil, fmt.Errorf("%w: %q", ErrGeometryKind, cfg.Kind)
	}
	if cfg.Source == nil || cfg.Sink == nil {
		return nil, errors.New("interaction: source and sink are required")
	}
	codec := cfg.Codec
	if codec == nil {
		codec = geocodec.Default
	}

	c := &Controller{
		source:   cfg.Source,
		codec:    codec,
		sink:     cfg.Sink,
		kind:     kind,
		multi:    cfg.Multi,
		onChange: cfg.OnChange,
	}

	features := cfg.Source.Features()
	switch len(features) {
	case 0:
	case 1:
		if features[0].Geometry != nil {
			if !c.accepts(features[0].Geometry, true) {
				return nil, fmt.Errorf("%w: existing %s in a %s widget", ErrGeometryKind,
					geocodec.KindOf(features[0].Geometry), c.editKind())
			}
			value, err := c.codec.EncodeGeometry(features[0].Geometry)
			if err != nil {
				return nil, err
			}
			c.feature = features[0]
			c.value = string(value)
			c.state = Editing
			c.modify = true
		}
	default:
		return nil, fmt.Errorf("interaction: source holds %d features", len(features))
	}
	cfg.Source.SetLimit(1)
	return c, nil
}

// editKind is the kind stored in the feature.
func (c *Controller) editKind() geocodec.Kind {
	if c.multi {
		return c.kind.Multi()
	}
	return c.kind
}

// accepts reports whether g may be drawn (stored=false) or stored.
func (c *Controller) accepts(g orb.Geometry, stored bool) bool {
	k := geocodec.KindOf(g)
	if stored {
		return k == c.editKind()
	}
	if c.multi {
		return k == c.kind || k == c.kind.Multi()
	}
	return k == c.kind
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Kind() geocodec.Kind { return c.kind }
func (c *Controller) Multi() bool         { return c.multi }

// Value returns the last value written to the sink.
func (c *Controller) Value() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Feature returns the edited feature, or nil.
func (c *Controller) Feature() *geojson.Feature {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.feature
}

// Geometry returns a copy of the edited geometry, or nil.
func (c *Controller) Geometry() orb.Geometry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.feature == nil || c.feature.Geometry == nil {
		return nil
	}
	return orb.Clone(c.feature.Geometry)
}

func (c *Controller) Interactions() Interactions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Interactions{Draw: c.draw, Modify: c.modify}
}

// StartDraw activates drawing. It is valid from Empty, and from Editing in
// multi mode where the drawn part is appended.
func (c *Controller) StartDraw() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Empty:
	case Editing:
		if !c.multi {
			return &TransitionError{Op: "start draw", From: c.state, Cause: ErrFeatureExists}
		}
	default:
		return &TransitionError{Op: "start draw", From: c.state}
	}
	c.state = Drawing
	c.draw, c.modify = true, false
	c.notify()
	return nil
}

// CompleteDraw commits the geometry built by the draw interaction. In
// multi mode its parts are appended to the edited feature.
func (c *Controller) CompleteDraw(g orb.Geometry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Drawing {
		return &TransitionError{Op: "complete draw", From: c.state}
	}
	if g == nil || !c.accepts(g, false) {
		return fmt.Errorf("%w: drew %s in a %s widget", ErrGeometryKind, geocodec.KindOf(g), c.editKind())
	}

	next := orb.Clone(g)
	if c.multi {
		var current orb.Geometry
		if c.feature != nil {
			current = orb.Clone(c.feature.Geometry)
		}
		next = appendParts(current, next)
	}
	if err := c.commit(next); err != nil {
		return err
	}

	c.state = Editing
	c.draw, c.modify = false, true
	c.notify()
	return nil
}

// AbortDraw cancels an in-progress draw.
func (c *Controller) AbortDraw() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Drawing {
		return &TransitionError{Op: "abort draw", From: c.state}
	}
	c.draw = false
	if c.feature != nil {
		c.state = Editing
		c.modify = true
	} else {
		c.state = Empty
	}
	c.notify()
	return nil
}

// Modify commits a geometry edited in place by the modify interaction. It
// is called on every geometry change, not only when editing ends, and is
// rejected while the modify interaction is toggled off.
func (c *Controller) Modify(g orb.Geometry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Editing {
		return &TransitionError{Op: "modify", From: c.state}
	}
	if !c.modify {
		return &TransitionError{Op: "modify", From: c.state, Cause: ErrModifyInactive}
	}
	if g == nil || !c.accepts(g, true) {
		return fmt.Errorf("%w: modified into %s in a %s widget", ErrGeometryKind, geocodec.KindOf(g), c.editKind())
	}
	if err := c.commit(orb.Clone(g)); err != nil {
		return err
	}
	c.notify()
	return nil
}

// SetModifyActive toggles the modify interaction while Editing.
func (c *Controller) SetModifyActive(active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Editing {
		return &TransitionError{Op: "toggle modify", From: c.state}
	}
	if c.modify != active {
		c.modify = active
		c.notify()
	}
	return nil
}

// Clear removes the feature, deactivates interactions and writes the empty
// value. Clearing an empty widget does nothing.
func (c *Controller) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Empty {
		return nil
	}
	if err := c.sink.SetValue(""); err != nil {
		return fmt.Errorf("interaction: write sink: %w", err)
	}
	if c.feature != nil {
		c.source.RemoveFeature(c.feature)
	}
	c.feature = nil
	c.value = ""
	c.state = Empty
	c.draw, c.modify = false, false
	c.notify()
	return nil
}

// commit writes g to the sink and then the source. On failure neither
// changes.
func (c *Controller) commit(g orb.Geometry) error {
	encoded, err := c.codec.EncodeGeometry(g)
	if err != nil {
		return err
	}
	value := string(encoded)
	if err := c.sink.SetValue(value); err != nil {
		return fmt.Errorf("interaction: write sink: %w", err)
	}

	if c.feature == nil {
		f := geojson.NewFeature(g)
		if err := c.source.AddFeature(f); err != nil {
			_ = c.sink.SetValue(c.value)
			return err
		}
		c.feature = f
	} else if !c.source.SetGeometry(c.feature, g) {
		_ = c.sink.SetValue(c.value)
		return errors.New("interaction: edited feature left the source")
	}
	c.value = value
	return nil
}

func (c *Controller) notify() {
	if c.onChange == nil {
		return
	}
	c.onChange(Change{
		State:        c.state,
		Value:        c.value,
		Interactions: Interactions{Draw: c.draw, Modify: c.modify},
	})
}

// appendParts adds the parts of g to the multi geometry current.
func appendParts(current, g orb.Geometry) orb.Geometry {
	switch g := g.(type) {
	case orb.Point:
		mp, _ := current.(orb.MultiPoint)
		return append(mp, g)
	case orb.MultiPoint:
		mp, _ := current.(orb.MultiPoint)
		return append(mp, g...)
	case orb.LineString:
		ml, _ := current.(orb.MultiLineString)
		return append(ml, g)
	case orb.MultiLineString:
		ml, _ := current.(orb.MultiLineString)
		return append(ml, g...)
	case orb.Polygon:
		mp, _ := current.(orb.MultiPolygon)
		return append(mp, g)
	case orb.MultiPolygon:
		mp, _ := current.(orb.MultiPolygon)
		return append(mp, g...)
	}
	return g
}
