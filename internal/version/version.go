package version

// Version is set at build time with
// -ldflags "-X github.com/franchb/ldapsafe/internal/version.Version=..."
var Version = "dev"
