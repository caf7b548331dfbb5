package version

import (
	"time"

	kwilVersion "github.com/trufnetwork/kwil-db/version"
)

// These variables can be overridden at build time with ldflags.
var (
	SSOVersion   string // -X github.com/ssonetwork/node/cmd/version.SSOVersion=...
	SSOCommit    string // -X github.com/ssonetwork/node/cmd/version.SSOCommit=...
	SSOBuildTime string // -X github.com/ssonetwork/node/cmd/version.SSOBuildTime=...
)

// getVersion returns the SSO node version if set, otherwise falls back to
// the embedded kwil-db version.
func getVersion() string {
	if SSOVersion != "" {
		return SSOVersion
	}
	return kwilVersion.KwilVersion
}

// getCommit returns the node commit (short form) if set, otherwise falls
// back to the kwil-db build revision.
func getCommit() string {
	var commit string
	if SSOCommit != "" {
		commit = SSOCommit
	} else if kwilVersion.Build != nil {
		commit = kwilVersion.Build.Revision
	}

	const shortHashLength = 9
	if len(commit) > shortHashLength {
		return commit[:shortHashLength]
	}
	return commit
}

func getBuildTime() time.Time {
	if SSOBuildTime != "" {
		if t, err := time.Parse(time.RFC3339, SSOBuildTime); err == nil {
			return t
		}
	}
	if kwilVersion.Build != nil {
		return kwilVersion.Build.RevTime
	}
	return time.Time{}
}

// getBuildTimeDisplay formats the build time, marking whether it reflects
// the commit time or a dirty-workspace build time.
func getBuildTimeDisplay() string {
	buildTime := getBuildTime()
	if buildTime.IsZero() {
		return "unknown"
	}

	if SSOBuildTime != "" {
		if SSOVersion != "" && len(SSOVersion) > 5 && SSOVersion[len(SSOVersion)-5:] == "dirty" {
			return buildTime.Format(time.RFC3339) + " (build time)"
		}
		return buildTime.Format(time.RFC3339) + " (commit time)"
	}

	return buildTime.Format(time.RFC3339) + " (commit time)"
}
