package buckets

// Op identifies a request-issuing client operation. It is attached to every
// *Error and used as the operation label on metrics. Keeping the set closed
// lets tests enumerate the full public surface of the client.
type Op int

const (
	OpCreateBucket Op = iota
	OpHeadBucket
	OpDeleteBucket
	OpListBuckets
	OpCreateObject
	OpGetObject
	OpStatObject
	OpPutObjectMetadata
	OpDeleteObject
	OpListObjects
	OpIsSupported

	opCount // sentinel, keep last

	// opNone tags errors raised before any operation was chosen,
	// e.g. client construction failures.
	opNone Op = -1
)

func (op Op) String() string {
	switch op {
	case OpCreateBucket:
		return "CreateBucket"
	case OpHeadBucket:
		return "HeadBucket"
	case OpDeleteBucket:
		return "DeleteBucket"
	case OpListBuckets:
		return "ListBuckets"
	case OpCreateObject:
		return "CreateObject"
	case OpGetObject:
		return "GetObject"
	case OpStatObject:
		return "StatObject"
	case OpPutObjectMetadata:
		return "PutObjectMetadata"
	case OpDeleteObject:
		return "DeleteObject"
	case OpListObjects:
		return "ListObjects"
	case OpIsSupported:
		return "IsSupported"
	default:
		return "unknown"
	}
}

// AllOps returns every request-issuing operation, in declaration order.
func AllOps() []Op {
	ops := make([]Op, 0, int(opCount))
	for op := Op(0); op < opCount; op++ {
		ops = append(ops, op)
	}
	return ops
}
