package types

// Version is the canonical project version.
// The CLI, the archive record layout and the pipeline_completed event share it.
const Version = "0.3.0"
