// Package config provides configuration structures and utilities for rdpscan.
// It defines the scan parameters (rate, timeout, proxy, exclusions), report
// preferences and the optional YAML configuration file.
package config
