// Package storage defines the source file-system abstraction used by the
// post loader and the plugins that rewrite or rename source files.
package storage

// Provider is the interface for source file operations. Relative paths are
// resolved against the provider root; absolute paths are used as is.
type Provider interface {
	// Find returns the absolute paths of files under dirs whose extension is
	// one of exts. A directory ending in "*" is searched recursively.
	Find(dirs []string, exts []string) ([]string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Exists reports whether a file exists at path.
	Exists(path string) bool
}
