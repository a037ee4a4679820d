package version

// Build-time values, overridable via -ldflags.
var (
	AppName   = "TuneQuiz"
	AppVer    = "dev"
	BuildDate = ""
)
