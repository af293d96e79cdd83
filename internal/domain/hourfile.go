package domain

// HourFile is the acquisition outcome for one forecast lead hour: either a
// local file path or the error that prevented retrieval. A cycle's []HourFile
// always covers every configured hour in ascending order, so a download
// failure shows up as an explicit gap instead of a shortened series.
type HourFile struct {
	Hour int
	Path string
	Err  error
}

// Gap reports whether this hour failed to download.
func (h HourFile) Gap() bool { return h.Err != nil }

// GapHours returns the lead hours that are missing from the series.
func GapHours(files []HourFile) []int {
	var gaps []int
	for _, f := range files {
		if f.Gap() {
			gaps = append(gaps, f.Hour)
		}
	}
	return gaps
}

// Available returns the number of successfully retrieved hours.
func Available(files []HourFile) int {
	n := 0
	for _, f := range files {
		if !f.Gap() {
			n++
		}
	}
	return n
}
