// Package config provides configuration structures and utilities for creatorcrawl.
// It defines the listing-site location, fetch retry policy, pagination
// pacing, the InfluxDB sink and the serve-mode triggers. Values are layered
// from defaults, the YAML file, the environment and finally CLI flags.
package config
