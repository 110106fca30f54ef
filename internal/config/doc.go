// Package config loads, normalizes, and validates Transponster configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SLACK_BOT_TOKEN and OPENROUTER_API_KEY. Reaction-to-language tables are
// canonicalized with golang.org/x/text/language so downstream lookups compare
// BCP 47 tags rather than raw strings.
//
// Validate covers structure only; ValidateDaemon additionally requires the
// credentials the Slack-facing service cannot run without.
package config
