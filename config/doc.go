// Package config provides handler registries and human-readable pipeline configuration.
//
// Register handlers by name, then define pipelines in YAML (or structs) that reference
// those names and optional modifiers (catch, retry, timeout) plus series options:
//
//	name: crawl
//	source: seeds
//	observers: [log]
//	series:
//	  parallel: 4
//	steps:
//	  - fetch
//	  - name: parse
//	    retry: exponential
//	    timeout: 60s
//	    initial: 5s
//	    max_attempts: 5
//	  - catch: skip-bad-page
//	  - store
//
// Build a pipeline with BuildPipeline(registry, config, opts), or build and start a
// series in one call with RunSeries.
package config
