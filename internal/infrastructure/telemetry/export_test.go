package telemetry

// Exported for the external test package.
var (
	SamplerFor      = samplerFor
	ServiceResource = serviceResource
)
