package detection

import (
	"fmt"
	"slices"
)

// Mode selects the detector model, class filter and gating rule of a request.
type Mode int

const (
	ModeStop Mode = iota + 1
	ModeTire
	ModePerson
)

var modeNames = map[Mode]string{
	ModeStop:   "stop",
	ModeTire:   "tire",
	ModePerson: "person",
}

// Modes returns every supported mode in a stable order.
func Modes() []Mode {
	return []Mode{ModeStop, ModeTire, ModePerson}
}

// ParseMode maps a request target to a Mode. Matching is exact; ok is false
// for anything outside "stop", "tire" and "person".
func ParseMode(target string) (Mode, bool) {
	for m, name := range modeNames {
		if name == target {
			return m, true
		}
	}
	return 0, false
}

// String returns the request target name of the mode.
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Route tells the Detector which model to run and which class ids to keep.
// Class ids are only meaningful within the model they belong to.
type Route struct {
	Model   string `json:"model" mapstructure:"model"`
	Classes []int  `json:"classes" mapstructure:"classes"`
}

// Routes is the mode to route table. It is kept explicit per mode rather than
// derived, because the tire and person models have independent class spaces.
type Routes map[Mode]Route

// COCO class ids used by the default routes.
const (
	cocoPerson   = 0
	cocoStopSign = 11
	tireClass    = 0
)

// DefaultRoutes returns the stock table: stop signs and people from the COCO
// model, tires from the dedicated tire model.
func DefaultRoutes(cocoModel, tireModel string) Routes {
	return Routes{
		ModeStop:   {Model: cocoModel, Classes: []int{cocoStopSign}},
		ModeTire:   {Model: tireModel, Classes: []int{tireClass}},
		ModePerson: {Model: cocoModel, Classes: []int{cocoPerson}},
	}
}

// Validate checks that every mode has a route with at least one class.
func (r Routes) Validate() error {
	for _, m := range Modes() {
		route, ok := r[m]
		if !ok {
			return fmt.Errorf("no route configured for mode %s", m)
		}
		if len(route.Classes) == 0 {
			return fmt.Errorf("route for mode %s has no classes", m)
		}
	}
	return nil
}

// Lookup returns a copy of the route for m.
func (r Routes) Lookup(m Mode) (Route, bool) {
	route, ok := r[m]
	if !ok {
		return Route{}, false
	}
	route.Classes = slices.Clone(route.Classes)
	return route, true
}
