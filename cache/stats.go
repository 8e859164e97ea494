package cache

// Stream identifies which counter set an access is charged to.
type Stream int

// The two accounting streams.
const (
	InstructionStream Stream = iota
	DataStream
)

func (s Stream) String() string {
	switch s {
	case InstructionStream:
		return "instruction"
	case DataStream:
		return "data"
	default:
		return "unknown"
	}
}

// Statistics holds the counters of one stream. Traffic is counted in words.
type Statistics struct {
	Accesses      uint64 `json:"accesses"`
	Misses        uint64 `json:"misses"`
	Replacements  uint64 `json:"replacements"`
	DemandFetches uint64 `json:"demand_fetches"`
	CopiesBack    uint64 `json:"copies_back"`
}

// Hits returns the number of accesses that did not miss.
func (s Statistics) Hits() uint64 {
	return s.Accesses - s.Misses
}

// MissRate returns misses / accesses, or 0 when there were no accesses.
func (s Statistics) MissRate() float64 {
	if s.Accesses == 0 {
		return 0
	}

	return float64(s.Misses) / float64(s.Accesses)
}

// HitRate returns 1 - MissRate, or 0 when there were no accesses.
func (s Statistics) HitRate() float64 {
	if s.Accesses == 0 {
		return 0
	}

	return 1 - s.MissRate()
}

// Report is a snapshot of both streams.
type Report struct {
	Instruction Statistics `json:"instruction"`
	Data        Statistics `json:"data"`
}

// Stream returns the counters of stream st.
func (r Report) Stream(st Stream) Statistics {
	if st == InstructionStream {
		return r.Instruction
	}

	return r.Data
}

// DemandFetches returns the combined demand-fetch traffic in words.
func (r Report) DemandFetches() uint64 {
	return r.Instruction.DemandFetches + r.Data.DemandFetches
}

// CopiesBack returns the combined copy-back traffic in words.
func (r Report) CopiesBack() uint64 {
	return r.Instruction.CopiesBack + r.Data.CopiesBack
}
