package cmd

import domain "github.com/inference-gateway/desktop-agent/internal/domain"

// GetVersionInfo returns the current version information
func GetVersionInfo() domain.VersionInfo {
	return domain.VersionInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}
