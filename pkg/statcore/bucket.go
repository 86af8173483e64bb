package statcore

// Bucket identifies the numeric pipeline stage a Contribution belongs to.
// Processing order is fixed: Flat, Mult, PostAdd, Override, then — only when
// the feature gate is enabled — Exponential, Logarithmic, Conditional.
type Bucket string

const (
	BucketFlat    Bucket = "flat"
	BucketMult    Bucket = "mult"
	BucketPostAdd Bucket = "post_add"
	BucketOverride Bucket = "override"

	// Feature-gated buckets. They are processed only when the owning
	// pipeline.Config enables them; contributions using a disabled one are
	// skipped by the Bucket Processor, not rejected.
	BucketExponential Bucket = "exponential"
	BucketLogarithmic Bucket = "logarithmic"
	BucketConditional Bucket = "conditional"
)

// CoreBucketOrder is the invariant processing order for the always-on
// buckets (spec §4.4 step 2).
var CoreBucketOrder = []Bucket{BucketFlat, BucketMult, BucketPostAdd, BucketOverride}

// ExtraBucketOrder is the processing order for feature-gated buckets, applied
// strictly after CoreBucketOrder.
var ExtraBucketOrder = []Bucket{BucketExponential, BucketLogarithmic, BucketConditional}

// IsExtraBucket reports whether b is one of the feature-gated buckets.
func IsExtraBucket(b Bucket) bool {
	switch b {
	case BucketExponential, BucketLogarithmic, BucketConditional:
		return true
	default:
		return false
	}
}

// IsCoreBucket reports whether b is one of the four always-on buckets.
func IsCoreBucket(b Bucket) bool {
	switch b {
	case BucketFlat, BucketMult, BucketPostAdd, BucketOverride:
		return true
	default:
		return false
	}
}
