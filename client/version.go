package client

// Version is set by build flags during compilation, e.g.
// go build -ldflags "-X github.com/dan-strohschein/syndrdb-aggregates/client.Version=$(git describe --tags --always)"
var Version = "dev"
