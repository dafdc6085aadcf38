package core

import (
	"github.com/cockroachdb/errors"
)

// Error kinds reported by the texture core. Call sites wrap or mark these so
// that callers can match them with errors.Is.
var (
	ErrUnsupportedFormat          = errors.New("unsupported format")
	ErrInvalidBufferSize          = errors.New("invalid buffer size")
	ErrOutOfDeviceMemory          = errors.New("out of device memory")
	ErrNoSuitableMemoryType       = errors.New("no suitable memory type")
	ErrDeviceObjectCreationFailed = errors.New("device object creation failed")
	ErrOutOfHandles               = errors.New("out of handles")
	ErrUnknownHandle              = errors.New("unknown handle")
	ErrInvalidDescriptor          = errors.New("invalid texture descriptor")
	ErrInvalidRegion              = errors.New("invalid region")
	ErrNotWritable                = errors.New("texture is not cpu writable")
	ErrTextureDestroyed           = errors.New("texture destroyed")
	ErrNotRecording               = errors.New("no command buffer is recording")
	ErrUnknown                    = errors.New("unknown")
)
