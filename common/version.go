// Package common holds process-wide helpers shared by all binaries:
// logger setup and build identification.
package common

// PackageName identifies this module in metrics and logs.
const PackageName = "nodeident"

// Version is the build version, overridden at link time via
// -ldflags "-X github.com/clusterforge/nodeident/common.Version=...".
var Version = "dev"
