package errs

// Result codes returned across the C calling boundary.
const (
	CodeSuccess         int32 = 0
	CodeNullBackend     int32 = -1
	CodeInvalidArgument int32 = -2
	CodeNotFound        int32 = -3
	CodeIOError         int32 = -4
	CodeUnsupported     int32 = -5
	CodeInternal        int32 = -100
)

// Code maps err onto the numeric code of its kind.
func Code(err error) int32 {
	if err == nil {
		return CodeSuccess
	}
	switch KindOf(err) {
	case ErrInvalidArgument:
		return CodeInvalidArgument
	case ErrNotFound:
		return CodeNotFound
	case ErrIO:
		return CodeIOError
	case ErrUnsupported:
		return CodeUnsupported
	}
	return CodeInternal
}
