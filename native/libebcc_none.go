//go:build !cgo || !ebcc_native

package native

// NativeLibrary returns the cgo binding to libebcc.
func NativeLibrary() (Library, error) {
	return nil, ErrNativeUnavailable
}
