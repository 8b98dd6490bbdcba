package media

// maxSampleURLs caps the offending-URL samples carried by a report so
// aggregated eval reports stay readable.
const maxSampleURLs = 5

// unlinkedOriginKey buckets assets with no parseable origin in the
// per-project breakdown.
const unlinkedOriginKey = "unlinked"

// Report summarizes cross-project and unlinked media detected during a
// single resolution. The eval driver merges reports across a run.
type Report struct {
	SkippedRequestCount int
	SkippedPlanHits     int
	PerProjectBreakdown map[string]int
	SampleURLs          []string
}

// Empty reports whether the resolution saw no foreign media at all.
func (r *Report) Empty() bool {
	return r.SkippedRequestCount == 0 && r.SkippedPlanHits == 0
}

// Merge folds other into r, accumulating counts and samples.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.SkippedRequestCount += other.SkippedRequestCount
	r.SkippedPlanHits += other.SkippedPlanHits
	for project, count := range other.PerProjectBreakdown {
		if r.PerProjectBreakdown == nil {
			r.PerProjectBreakdown = make(map[string]int)
		}
		r.PerProjectBreakdown[project] += count
	}
	for _, sample := range other.SampleURLs {
		if len(r.SampleURLs) >= maxSampleURLs {
			break
		}
		r.SampleURLs = append(r.SampleURLs, sample)
	}
}

func (r *Report) recordOffender(asset OffendingAsset) {
	r.SkippedPlanHits++
	if r.PerProjectBreakdown == nil {
		r.PerProjectBreakdown = make(map[string]int)
	}
	key := asset.OriginProject
	if asset.Unlinked {
		key = unlinkedOriginKey
	}
	r.PerProjectBreakdown[key]++
	if len(r.SampleURLs) < maxSampleURLs {
		r.SampleURLs = append(r.SampleURLs, asset.URL)
	}
}
