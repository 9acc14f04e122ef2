package agent

import (
	"encoding/json"
)

const loopWindow = 3

// LoopDetector remembers the last three tool call signatures and reports a
// loop when all three are identical.
type LoopDetector struct {
	ring [loopWindow]string
	n    int
}

// Signature is the canonical form of a tool call: the name and the JSON of
// its arguments with sorted keys.
func Signature(name string, args map[string]any) string {
	if args == nil {
		args = map[string]any{}
	}
	// encoding/json sorts map keys.
	b, err := json.Marshal(args)
	if err != nil {
		return name + ":?"
	}
	return name + ":" + string(b)
}

// Observe records a call and reports whether the window is now a loop.
func (d *LoopDetector) Observe(name string, args map[string]any) bool {
	d.ring[d.n%loopWindow] = Signature(name, args)
	d.n++
	if d.n < loopWindow {
		return false
	}
	return d.ring[0] == d.ring[1] && d.ring[1] == d.ring[2]
}
