package vfs

// FallbackPolicy decides what to do with a request whose redirected target
// does not exist yet. It returns true when the redirected path must be used
// anyway, false when the original host path must be returned.
type FallbackPolicy func(req FileRequest) bool

// DefaultFallbackPolicy keeps the redirected path only when the request is
// going to create the target:
//
//   - a library load that is unknown to the virtual environment resolves
//     through the host's normal search order;
//   - OpenExisting and an unset disposition create nothing, so the original
//     path is used;
//   - every other disposition creates the file inside the virtual root.
//
// Treating an unset disposition like OpenExisting means a write whose
// disposition was never filled in reaches the host path. Use
// StrictFallbackPolicy to keep such requests inside the virtual root.
func DefaultFallbackPolicy(req FileRequest) bool {
	if req.Kind == ResourceLibrary {
		return false
	}
	switch req.Disposition {
	case OpenExisting, DispositionUnspecified:
		return false
	default:
		return true
	}
}

// StrictFallbackPolicy is DefaultFallbackPolicy except that an unset
// disposition is redirected.
func StrictFallbackPolicy(req FileRequest) bool {
	if req.Kind == ResourceLibrary {
		return false
	}
	return req.Disposition != OpenExisting
}
