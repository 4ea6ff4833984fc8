package featureflag

type Flag string

const (
	FlagDisableSimulation     Flag = "DISABLE_SIMULATION"
	FlagDisableDebugStream    Flag = "DISABLE_DEBUG_STREAM"
	FlagDisableQueryEndpoints Flag = "DISABLE_QUERY_ENDPOINTS"
)
