// Package config provides configuration parsing for ion servers and
// clients.
//
// The configuration is stored in ion.yaml or ion.json. This package
// handles loading, saving, and validating it, and converts it into the
// in-process pkg/server and pkg/client configuration structs.
//
// # Configuration File Structure
//
//	server:
//	  address: ":8080"
//	  readTimeout: 30s
//	  maxMessageSize: 1048576
//	stream:
//	  baseDelay: 200ms
//	  maxDelay: 30s
//	  maxAttempts: 0
//	ticket:
//	  secret: $ION_TICKET_SECRET
//	  ttl: 30s
//	metrics:
//	  enabled: true
//	  namespace: ion
//	tracing:
//	  enabled: false
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sc, err := cfg.ServerConfig()
package config
