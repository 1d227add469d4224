// Package deviceauto is the dispatch layer for device automations:
// triggers, conditions and actions phrased in terms of a device
// ("when button 1 is double-pushed") rather than raw events or states.
//
// Integrations register providers per domain. The registry routes
// config maps to the owning provider and satisfies the DeviceResolver
// interfaces of the trigger, condition and script packages, keeping
// vendor code out of the generic automation engine. It also lists the
// capabilities a device offers, which drives the automation editor in
// the API layer.
package deviceauto
