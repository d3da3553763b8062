package vitessr

import "errors"

var (
	// ErrManifestNotFound is returned by ReadManifest when no manifest file exists.
	ErrManifestNotFound = errors.New("manifest not found")

	// ErrInvalidManifest wraps JSON or module decoding failures.
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrParse marks a source file the entry scanner could not parse.
	ErrParse = errors.New("parse failed")

	// ErrNoEntries is returned by builders given an environment with nothing to bundle.
	ErrNoEntries = errors.New("no entries")
)
