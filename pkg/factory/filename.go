package factory

import "github.com/google/uuid"

// FilenameGenerator mints a filesystem-unique name for a persistent
// temp file under the given prefix. It is an external collaborator per
// SPEC_FULL.md §1 Non-goals — the module depends only on its contract.
type FilenameGenerator interface {
	NewFilename(prefix string) string
}

// UUIDFilenameGenerator is the default FilenameGenerator: prefix +
// "-" + a random UUID.
type UUIDFilenameGenerator struct{}

func (UUIDFilenameGenerator) NewFilename(prefix string) string {
	return prefix + "-" + uuid.New().String()
}
