package version

// Version is the release version of the imposters server.
const Version = "1.2.0"
