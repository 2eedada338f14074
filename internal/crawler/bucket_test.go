package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucketFor(t *testing.T) {
	t.Parallel()

	cases := map[int]string{
		-3:   "0",
		0:    "0",
		1:    "0-499",
		150:  "0-499",
		499:  "0-499",
		500:  "500-999",
		999:  "500-999",
		1000: "1000-1499",
		1234: "1000-1499",
	}
	for count, want := range cases {
		assert.Equal(t, want, BucketFor(count), "count %d", count)
	}
}

func TestPartitionDir(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "go/0-499", Partition{Tag: "go", Bucket: "0-499"}.Dir())
}
