package crawler

import "strconv"

// BucketWidth is the span of one engagement bucket.
const BucketWidth = 500

// ZeroBucket is the label for items without any engagement.
const ZeroBucket = "0"

// BucketFor maps an engagement count to its storage bucket label. Counts of
// zero (or below) map to ZeroBucket; everything else maps to the closed range
// "start-end" of width BucketWidth containing count.
func BucketFor(count int) string {
	if count <= 0 {
		return ZeroBucket
	}
	start := count / BucketWidth * BucketWidth
	return strconv.Itoa(start) + "-" + strconv.Itoa(start+BucketWidth-1)
}
