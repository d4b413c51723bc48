// Package config provides configuration structures and utilities for commprobe.
// It defines the main configuration options for discovery, comment tree
// walking, rate budgeting, and report generation preferences.
package config
