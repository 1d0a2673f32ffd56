// Package config provides loading and environment overlay for Stele
// runtime configuration. It exposes a Default() baseline, file loading
// from JSON or YAML, and a STELE_* environment overlay.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/stele.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	rt, _ := runtime.Open(runtime.Options{Config: cfg, Engine: engine})
//	defer rt.Close()
package config
