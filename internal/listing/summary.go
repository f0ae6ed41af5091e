package listing

// Apply folds one URL outcome into the summary counters. Not safe for
// concurrent use; callers synchronize.
func (s *RunSummary) Apply(o URLOutcome) {
	s.Outcomes = append(s.Outcomes, o)

	if o.Status == URLFetchFailed {
		s.FetchFailed++
		return
	}
	s.Fetched++

	switch o.Status {
	case URLExtractionFailed:
		s.ExtractionFailed++
	case URLIdentityRejected:
		s.IdentityRejected++
	case URLStoreFailed:
		s.Extracted++
		s.StoreFailed++
	case URLSucceeded:
		s.Extracted++
		switch o.Outcome {
		case UpsertInserted:
			s.Inserted++
		case UpsertMergedChanged, UpsertMergedNoop:
			s.Merged++
		}
	}
}
