package topograph

// Version is the release of the engine. Builds override it with
// -ldflags "-X github.com/aretw0/topograph.Version=...".
var Version = "0.4.0"
