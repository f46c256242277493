package procmgr

// Version is the current version of the go-procmgr library
const Version = "1.0.0"

// VersionInfo contains detailed version information
type VersionInfo struct {
	// Version is the semantic version
	Version string
	// Platform is the process model the supervisor targets
	Platform string
}

// GetVersion returns the current version information
func GetVersion() VersionInfo {
	return VersionInfo{
		Version:  Version,
		Platform: "unix",
	}
}
