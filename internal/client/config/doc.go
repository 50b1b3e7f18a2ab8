// Package config loads runtime configuration for the moodkeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see Defaults).
//  2. Optional config file selected with --config (json, yaml or toml).
//  3. Environment variables with the MOODKEEPER_ prefix. Nested keys use
//     underscores, e.g. MOODKEEPER_S3_BUCKET.
//  4. Command-line flags registered by BindFlags.
//
// # File example
//
//	server_addr: 127.0.0.1:50051
//	user_id: alice
//	remote: grpc
//	remote_timeout: 10s
//	log:
//	  file: moodkeeper.log
//	  level: debug
//
// Durations accept Go duration strings such as "3s" or "5m".
package config
