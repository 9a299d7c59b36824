package config

// Well-known DPModuleIndex values for this repository's two
// packet-processing modules. A real deployment assigns these through
// its own modules.yaml; fixed constants are enough here since there is
// exactly one dataplane binary.
const (
	DPModuleNAT64    uint64 = 1
	DPModuleBalancer uint64 = 2
)
