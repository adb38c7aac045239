// Package config loads giftlist's TOML configuration.
//
// # Configuration Discovery
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/giftlist/config.toml
//  3. If the file doesn't exist, fall back to Default
//  4. Missing or blank fields keep their defaults
//
// # TOML Format
//
//	backend = "mongo"              # memory | mongo | dynamodb
//	log_path = "~/.local/state/giftlist/giftlist.log"
//	metrics_bind = "127.0.0.1:9464" # empty disables the endpoint
//	poll_seconds = 2               # dynamodb live query cadence
//	commit_timeout_seconds = 15
//	allow_overwrite = false        # true restores last-writer-wins
//
//	[event]
//	title = "Kitchen Shower"
//	hosts = "Luyzie & Higor"
//	date = "29 November 2025"
//	message = "..."
//
//	[mongo]
//	uri = "mongodb://localhost:27017/?replicaSet=rs0"
//	database = "giftlist"
//	collection = "gifts"
//
//	[dynamodb]
//	table = "gifts"
//	region = "us-east-1"
//	endpoint = "http://localhost:8000"
//
//	[[gifts]]
//	name = "Blender"
//	image = "blender.png"
//
// The [[gifts]] entries seed the memory backend; a small sample catalog is
// used when none are given. The same entries, in a file of their own, are
// accepted by LoadCatalog for seeding the remote stores.
//
// Tilde paths are expanded for the config file and log_path.
package config
