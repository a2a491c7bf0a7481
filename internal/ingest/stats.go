package ingest

// PhaseStats accumulates what one phase run saw and wrote. Owned by the
// phase aggregator goroutine; callers receive a copy after the run.
type PhaseStats struct {
	FilesDiscovered int `json:"files_discovered"`
	FilesProcessed  int `json:"files_processed"`
	FileErrors      int `json:"file_errors"`

	// Skipped counts records dropped in extraction for a missing key field.
	Skipped int `json:"skipped"`
	// Duplicates counts records dropped because their natural key was
	// already claimed earlier in this run.
	Duplicates int `json:"duplicates"`
	// ReferentialMisses counts chart entries whose horse name resolved to
	// no persisted registration number.
	ReferentialMisses int `json:"referential_misses"`

	// Inserted is the per-table count of rows actually written.
	Inserted map[string]int64 `json:"inserted,omitempty"`
	// Updated and UpdateMisses track the results-phase merges.
	Updated      int64 `json:"updated"`
	UpdateMisses int64 `json:"update_misses"`

	FlushErrors int `json:"flush_errors"`
}

func (s *PhaseStats) addInserted(counts map[string]int64) {
	if s.Inserted == nil {
		s.Inserted = make(map[string]int64)
	}
	for table, n := range counts {
		s.Inserted[table] += n
	}
}

// TotalInserted sums the per-table insert counts.
func (s *PhaseStats) TotalInserted() int64 {
	var total int64
	for _, n := range s.Inserted {
		total += n
	}
	return total
}
