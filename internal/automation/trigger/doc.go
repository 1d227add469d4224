// Package trigger implements automation trigger platforms.
//
// A trigger config is a plain mapping whose "platform" key selects the
// implementation:
//
//	event          bus events, with optional data subset matching
//	state          entity state transitions (from/to/not_from/not_to/for)
//	numeric_state  numeric threshold crossings (above/below)
//	mqtt           raw MQTT topics, with optional payload matching
//	time           daily wall-clock times or repeating intervals
//	device         integration-defined device triggers (button pushes,
//	               central scenes, motion events), resolved through the
//	               deviceauto registry
//
// Attaching a trigger wires it into the running hub and returns a
// detach function; the automation engine attaches on enable and
// detaches on disable, so a disabled automation consumes nothing.
package trigger
