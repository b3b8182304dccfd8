package core

import "errors"

// Error classes shared by every package. Callers match them with errors.Is.
var (
	// ErrConfiguration indicates an invalid or unusable configuration value.
	ErrConfiguration = errors.New("configuration error")
	// ErrFilesystem indicates that a working directory could not be provisioned.
	ErrFilesystem = errors.New("filesystem error")
	// ErrEngine indicates that the synthesis engine invocation failed.
	ErrEngine = errors.New("engine error")
	// ErrSave indicates that a single candidate could not be written.
	ErrSave = errors.New("save error")
	// ErrInvalidRequest indicates that a synthesis request is malformed.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoVoiceSamples indicates that the requested voice produced no reference clips.
	ErrNoVoiceSamples = errors.New("voice produced no samples")
	// ErrVoice indicates that a reference clip could not be listed or decoded.
	ErrVoice = errors.New("voice error")
	// ErrMirror indicates that written candidates could not be mirrored.
	ErrMirror = errors.New("mirror error")
)
