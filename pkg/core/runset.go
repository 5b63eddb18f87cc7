package core

// Run is a closed, sorted temporary file.
type Run struct {
	Path    string
	Records int64
	Bytes   int64
}

// RunSet is what a generator hands to a merger.
//
// Partitioned means the runs hold disjoint, ascending key ranges, so writing
// them one after another already yields sorted output.
type RunSet struct {
	Runs        []Run
	Partitioned bool
}

func (rs RunSet) Len() int { return len(rs.Runs) }

func (rs RunSet) Records() int64 {
	var n int64
	for _, r := range rs.Runs {
		n += r.Records
	}
	return n
}

func (rs RunSet) Bytes() int64 {
	var n int64
	for _, r := range rs.Runs {
		n += r.Bytes
	}
	return n
}
