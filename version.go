package transcache

// Version information for transcache.
// These values can be overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/ZaguanLabs/transcache.GitCommit=abc1234"
const (
	// Name is the application name.
	Name = "transcache"

	// Description is a short description of the application.
	Description = "Translation cache with request coalescing for AI providers"

	// Version is the semantic version of the application.
	Version = "0.2.0"

	// Repository is the source code repository URL.
	Repository = "https://github.com/ZaguanLabs/transcache"

	// License is the software license.
	License = "MIT"
)

// BuildInfo contains build-time information.
// These are typically set via ldflags during build.
var (
	// GitCommit is the git commit hash.
	GitCommit = "unknown"

	// GitBranch is the git branch name.
	GitBranch = "unknown"

	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// FullVersion returns the version string with the short commit appended
// when one was set at build time.
func FullVersion() string {
	v := Version
	if GitCommit != "unknown" && GitCommit != "" {
		short := GitCommit
		if len(short) > 7 {
			short = short[:7]
		}
		v += "+" + short
	}
	return v
}

// UserAgent returns the user agent sent to providers.
func UserAgent() string {
	return Name + "/" + Version
}
