// Package service provides the hub's service registry: named
// operations (domain.service) that integrations register and that
// automations, other integrations and the REST API invoke.
//
// The registry satisfies the script package's ServiceCaller interface,
// so automation actions dispatch through the same path as API calls.
// Built-in hub.* services operate on automation entities; the
// DeviceCommander routes device commands onto MQTT using the device
// registry's topic information.
package service
