package domain

import (
	"fmt"
	"strings"
)

// EntryPoint identifies the application object a server resolves at startup:
// a module name and an exported object inside it, written "module:object".
type EntryPoint struct {
	Module string
	Object string
}

// ParseEntryPoint parses an entry-point identifier of the form "module:object".
func ParseEntryPoint(s string) (EntryPoint, error) {
	module, object, ok := strings.Cut(s, ":")
	if !ok {
		return EntryPoint{}, fmt.Errorf("invalid entry point %q: want module:object", s)
	}
	module = strings.TrimSpace(module)
	object = strings.TrimSpace(object)
	if module == "" || object == "" {
		return EntryPoint{}, fmt.Errorf("invalid entry point %q: empty module or object", s)
	}
	return EntryPoint{Module: module, Object: object}, nil
}

func (e EntryPoint) String() string {
	return e.Module + ":" + e.Object
}
