package version

// Version is the current version of the sheshield CLI & server.
var Version = "0.1.0"
