package wire

import (
	"context"
	_ "embed"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/bufbuild/protocompile"
	"github.com/bufbuild/protocompile/linker"
	"go.uber.org/zap"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// SchemaManager exposes the authoritative wire schemas to hosts: saving the
// .proto sources to disk and resolving compiled descriptors for tooling that
// works on protobuf reflection.
type SchemaManager interface {
	// Save writes the .proto sources to a directory.
	Save(dirPath string) error
	// Get returns a map of proto filenames to their content.
	Get() map[string]string
	// Files returns the compiled descriptors of both schemas.
	Files() (linker.Files, error)
}

// WireProtoEmbedded is the embedded source of the peer message schema.
//
//go:embed wire.proto
var WireProtoEmbedded string

// WatchingProtoEmbedded is the embedded source of the remote-service schema.
//
//go:embed watching.proto
var WatchingProtoEmbedded string

type schemaManager struct {
	files map[string]string
}

// NewSchemaManager creates a manager over the embedded wire schemas.
func NewSchemaManager() SchemaManager {
	return &schemaManager{files: map[string]string{
		"wire.proto":     WireProtoEmbedded,
		"watching.proto": WatchingProtoEmbedded,
	}}
}

// Save writes both .proto sources to the specified directory, creating it if
// needed.
func (m *schemaManager) Save(dirPath string) error {
	if err := os.MkdirAll(dirPath, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	for filename, content := range m.files {
		fullPath := filepath.Join(dirPath, filename)
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write file %s: %w", fullPath, err)
		}
	}
	return nil
}

// Get returns a copy of the filename → content map.
func (m *schemaManager) Get() map[string]string {
	return maps.Clone(m.files)
}

// Files compiles the embedded schemas into linker.Files using protocompile.
func (m *schemaManager) Files() (linker.Files, error) {
	accessor := protocompile.SourceAccessorFromMap(maps.Clone(m.files))
	r := protocompile.WithStandardImports(&protocompile.SourceResolver{Accessor: accessor})
	compiler := protocompile.Compiler{
		Resolver:       r,
		SourceInfoMode: protocompile.SourceInfoStandard,
	}
	fds, err := compiler.Compile(context.Background(), slices.Sorted(maps.Keys(m.files))...)
	if err != nil || fds == nil {
		zap.L().Error("failed to compile wire schemas", zap.Error(err))
		return nil, fmt.Errorf("failed to compile wire schemas: %v", err)
	}
	return fds, nil
}

// FindMessage searches compiled files for a message descriptor with the given
// fully-qualified name, e.g. "perun.wire.Envelope".
func FindMessage(files linker.Files, name string) (protoreflect.MessageDescriptor, error) {
	for _, file := range files {
		if d := file.FindDescriptorByName(protoreflect.FullName(name)); d != nil {
			if md, ok := d.(protoreflect.MessageDescriptor); ok {
				return md, nil
			}
		}
	}
	return nil, fmt.Errorf("message %s not found in wire schemas", name)
}
