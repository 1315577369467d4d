package sealevel

const (
	CUSystemProgramDefaultComputeUnits  = 150
	CUTokenProgramDefaultComputeUnits   = 4644
	CUStakingProgramDefaultComputeUnits = 25000
)
