// Package device manages the hub's device registry.
//
// Devices are the physical hardware behind entities: a Shelly relay, a
// Z-Wave wall controller, a UniFi Protect camera. Integrations register
// devices on startup; the automation layer resolves device triggers,
// conditions, and actions against a device's owning integration; and
// the service layer routes commands to a device's MQTT command topic.
//
// The Registry caches devices in memory over the SQLite Repository,
// following the same cache-over-repository shape used elsewhere in the
// hub. All reads return deep copies.
package device
