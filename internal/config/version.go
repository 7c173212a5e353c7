package config

// Build metadata, overridden at link time:
//
//	go build -ldflags "-X github.com/helpcove/kbsync/internal/config.Version=v0.4.0 ..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)
