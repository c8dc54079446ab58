package common

import "unsafe"

func ByteSliceCopy(buff []byte) []byte {
	res := make([]byte, len(buff))
	copy(res, buff)
	return res
}

// ByteSliceToStringZeroCopy converts a byte slice to a string without copying.
// The byte slice must not be written to afterwards.
func ByteSliceToStringZeroCopy(buff []byte) string {
	if len(buff) == 0 {
		return ""
	}
	return unsafe.String(&buff[0], len(buff))
}

// StringToByteSliceZeroCopy converts a string to a byte slice without copying.
// The returned byte slice must not be written to.
func StringToByteSliceZeroCopy(str string) []byte {
	if str == "" {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(str), len(str))
}
