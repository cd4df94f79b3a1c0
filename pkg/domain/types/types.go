package types

// Version is the drover version, overridden at release build time via
// -ldflags "-X github.com/m-mizutani/drover/pkg/domain/types.Version=...".
var Version = "v0.1.0"

// AppName is used for health responses, user agents and status contexts.
const AppName = "drover"
