package source

type (
	// FileID uniquely identifies a source file within a FileSet.
	FileID uint32
	// FileFlags encodes metadata about a source file.
	FileFlags uint8
)

const (
	// FileVirtual indicates the file was added from memory (test, stdin, etc.).
	FileVirtual FileFlags = 1 << iota
	FileHadBOM
	FileNormalizedCRLF
)

// File captures metadata and content for a single input file.
// Content holds the normalized bytes all spans refer to; Raw keeps the
// exact on-disk bytes when normalization changed anything, so output can
// be spliced without rewriting untouched lines.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	Raw     []byte // nil when identical to Content
	LineIdx []uint32
	Hash    [32]byte
	Flags   FileFlags

	crlfIdx []uint32 // normalized offsets of \n that were \r\n in Raw
}

// LineCol represents a human-readable position in a source file.
type LineCol struct {
	Line uint32 // 1-based
	Col  uint32 // 1-based
}
