package main

// set with -ldflags "-X main.gitSHA1=..."
var (
	gitSHA1   string = "unknown"
	gitDirty  string = "unknown"
	buildID   string = "unknown"
	buildDate string = "unknown"
)

func Version() string {
	if gitDirty == "1" {
		return gitSHA1 + "-dirty"
	}
	return gitSHA1
}

func EchoBuildIdRaw() string {
	return buildID + buildDate + gitSHA1 + gitDirty
}
