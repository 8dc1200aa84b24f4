// Package config handles loading and validating Hue bridge adapter configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with GRAYLOGIC_HUE_* environment variables
//   - Validation of required fields (bridge IP, application key)
//   - Watching the file for changes at runtime
//
// Security Considerations:
//   - The Hue application key and MQTT password should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/huebridge.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Hue.IP)
package config
