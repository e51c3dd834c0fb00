// Command bootstrapd provisions cluster node identities before the
// nodes start serving: it ensures the cluster signing keypair exists,
// issues root-scoped credentials for core nodes through the shared
// credential store, and then serves diagnostics (livez/readyz/drain)
// and Prometheus metrics.
//
// Usage:
//
//	bootstrapd --cert-dir certs --manifest nodes.yaml --db-owner auth_core
//
// The manifest lists every node the deployment brings up:
//
//	nodes:
//	  - type: auth
//	    id: auth_core
//	    provided:
//	      mongoUrl: mongodb://127.0.0.1:27017/cluster
//	  - type: api
//	    id: api_1
//	  - type: core
//	    id: jobs_core
package main
