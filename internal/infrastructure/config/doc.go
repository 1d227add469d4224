// Package config loads the hub configuration from a YAML file, applies
// AMBER_-prefixed environment overrides, fills in defaults and
// validates the result.
//
// Loading happens once at startup; the returned Config is treated as
// read-only afterwards. Secrets (the JWT signing key, broker passwords,
// NVR API keys) are better supplied through environment variables than
// written into the file, and the file itself should not be world
// readable.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
