// Package config loads, normalizes, and validates siksha configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SIKSHA_LLM_API_KEY and SIKSHA_API_TOKEN. The Config type centralizes every
// knob the daemon and CLI need, from the lesson output root to the ordered
// generator chains for images and speech.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
