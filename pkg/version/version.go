// Package version holds build metadata, set at link time with
// -ldflags "-X github.com/veesix-networks/aasbus/pkg/version.Version=...".
package version

import "runtime"

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}

func Get() Info {
	return Info{
		Version: Version,
		Commit:  Commit,
		Date:    Date,
		Go:      runtime.Version(),
	}
}

func Full() string {
	return Version + " (" + Commit + ") built on " + Date + " with " + runtime.Version()
}
