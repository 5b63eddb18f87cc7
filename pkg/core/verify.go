package core

import (
	"fmt"

	"github.com/zeebo/xxh3"

	"runsort/pkg/common"
	"runsort/pkg/storage/runfile"
)

// Verification describes a finished output file.
type Verification struct {
	Records  int64
	Sorted   bool
	Disorder int64 // 1-based index of the first out-of-order record, 0 if sorted

	// Fingerprint identifies the multiset of lines regardless of order, so
	// outputs of different algorithms over the same input must agree.
	Fingerprint string
}

// Verify reads path once, checking order under ordering and fingerprinting
// its lines.
func Verify(path string, ordering common.Ordering) (Verification, error) {
	it, err := runfile.Open(path, ordering)
	if err != nil {
		return Verification{}, err
	}
	defer it.Close()

	v := Verification{Sorted: true}
	var (
		sum, xor uint64
		prev     common.Record
	)
	for it.Next() {
		r := it.Record()
		v.Records++
		if v.Sorted && v.Records > 1 && ordering.Compare(prev, r) > 0 {
			v.Sorted = false
			v.Disorder = v.Records
		}
		h := xxh3.HashString(r.Line)
		sum += h
		xor ^= h
		prev = r
	}
	if err := it.Err(); err != nil {
		return Verification{}, err
	}
	v.Fingerprint = fmt.Sprintf("%016x%016x-%d", sum, xor, v.Records)
	return v, nil
}
