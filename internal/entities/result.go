package entities

// BatchResult is the outcome of processing one request's photo set.
// Archive is never empty: zero processed images is reported as an error
// upstream, not as an empty result.
type BatchResult struct {
	TotalCount     int
	ProcessedCount int
	Archive        []byte
	ArchiveName    string
	// Previews holds downscaled JPEG thumbnails of the first few processed
	// photos, in ordinal order.
	Previews [][]byte
	// Metadata is the plain-text listing summary embedded in the archive.
	Metadata string
}
