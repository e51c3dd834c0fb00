// Package bootstrap orchestrates node identity provisioning.
//
// The Coordinator is the single entry point the node loader calls, once
// per node descriptor, before that node starts serving. Per call it
// awaits the cluster keypair, injects PEM material into key-consuming
// node configs, and resolves root-scoped credentials for core nodes
// through the two-tier credential store. Two write-once promises owned
// by the coordinator sequence the partially-ordered fan-out: key
// readiness and the shared database target published by the distinguished
// owner node.
//
// The package also defines the YAML deployment manifest format consumed
// by bootstrapd.
package bootstrap
