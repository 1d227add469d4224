// Package integrations hosts the vendor adapters that connect real
// devices to the hub. Each adapter implements the Integration interface
// and lives in its own subpackage (shelly, zwave, cover, unifi). The
// Loader starts them at boot with a Hub value carrying the shared
// collaborators; a failing adapter is logged and skipped rather than
// aborting startup.
package integrations
