package billboard

// gridIndex is the grid-bucket spatial index recommended by the design notes
// for overlap queries once plot counts pass a few thousand: a 256x256 grid
// of pixel buckets, each holding the set of plot ids whose rectangle
// intersects it. It is persistent (copy-on-write): clone shares every
// bucket with its parent until that specific bucket is next mutated, so
// forking a snapshot per block never re-touches buckets the block doesn't.
const gridBucketSize = 256
const gridBuckets = CanvasSize / gridBucketSize

type bucketKey struct{ bx, by int }

type gridIndex struct {
	buckets map[bucketKey]map[string]struct{}
}

func newGridIndex() *gridIndex {
	return &gridIndex{buckets: make(map[bucketKey]map[string]struct{})}
}

func (g *gridIndex) clone() *gridIndex {
	clone := &gridIndex{buckets: make(map[bucketKey]map[string]struct{}, len(g.buckets))}
	for k, v := range g.buckets {
		clone.buckets[k] = v
	}
	return clone
}

func bucketRange(r Rect) (bx0, by0, bx1, by1 int) {
	bx0 = int(r.X0) / gridBucketSize
	by0 = int(r.Y0) / gridBucketSize
	bx1 = (r.x1() - 1) / gridBucketSize
	by1 = (r.y1() - 1) / gridBucketSize
	return
}

// insert copy-on-writes every bucket r touches, adding txid to it.
func (g *gridIndex) insert(txid string, r Rect) {
	bx0, by0, bx1, by1 := bucketRange(r)
	for bx := bx0; bx <= bx1; bx++ {
		for by := by0; by <= by1; by++ {
			key := bucketKey{bx, by}
			bucket := g.buckets[key]
			newBucket := make(map[string]struct{}, len(bucket)+1)
			for id := range bucket {
				newBucket[id] = struct{}{}
			}
			newBucket[txid] = struct{}{}
			g.buckets[key] = newBucket
		}
	}
}

// remove copy-on-writes every bucket r touches, dropping txid from it.
func (g *gridIndex) remove(txid string, r Rect) {
	bx0, by0, bx1, by1 := bucketRange(r)
	for bx := bx0; bx <= bx1; bx++ {
		for by := by0; by <= by1; by++ {
			key := bucketKey{bx, by}
			bucket := g.buckets[key]
			if bucket == nil {
				continue
			}
			newBucket := make(map[string]struct{}, len(bucket))
			for id := range bucket {
				if id != txid {
					newBucket[id] = struct{}{}
				}
			}
			if len(newBucket) == 0 {
				delete(g.buckets, key)
			} else {
				g.buckets[key] = newBucket
			}
		}
	}
}

// candidates returns the (deduplicated, unordered) set of plot ids whose
// bucket range intersects r. Callers must still verify the actual rectangle
// overlap, since a bucket hit only proves the two bounding regions share a
// bucket, not that the rectangles themselves overlap.
func (g *gridIndex) candidates(r Rect) map[string]struct{} {
	bx0, by0, bx1, by1 := bucketRange(r)
	out := make(map[string]struct{})
	for bx := bx0; bx <= bx1; bx++ {
		for by := by0; by <= by1; by++ {
			for id := range g.buckets[bucketKey{bx, by}] {
				out[id] = struct{}{}
			}
		}
	}
	return out
}
