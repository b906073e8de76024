// Package version holds the application version, overridden at build time with
//
//	-ldflags "-X github.com/ndewijer/portfolio-valuation-backend/internal/version.Version=1.2.3"
package version

// Version is the running application version.
var Version = "dev"
