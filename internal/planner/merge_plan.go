package planner

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/creatorincome/wpup/internal/fsops"
	"github.com/creatorincome/wpup/internal/header"
)

// ModulesDir is merged by union when an overlay has no entry file.
const ModulesDir = "modules"

// LegacyAuxFiles are copied from overlays without an entry file.
var LegacyAuxFiles = []string{"changelog.txt", "loco.xml"}

// BuildMergePlan generates a deterministic plan composing base and overlays
// into root. Overlays apply in order; later overlays win on collisions.
func BuildMergePlan(fs fsops.FS, root string, base Source, overlays []Source) (*MergePlan, error) {
	branches := make([]string, 0, len(overlays)+1)
	branches = append(branches, base.Branch)
	for _, o := range overlays {
		branches = append(branches, o.Branch)
	}

	b := &builder{
		fs:     fs,
		root:   root,
		plan:   NewMergePlan(branches),
		owners: make(map[string]string),
	}

	// The base is copied verbatim
	if err := b.copyTree(OpCopyTree, base, base.Dir, ""); err != nil {
		return nil, fmt.Errorf("failed to plan base %s: %w", base.Branch, err)
	}

	for _, overlay := range overlays {
		entry, err := header.FindEntryFile(fs, overlay.Dir)
		switch {
		case err == nil:
			err = b.relocate(overlay, entry)
		case errors.Is(err, header.ErrNoEntryFile):
			err = b.legacy(overlay)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to plan overlay %s: %w", overlay.Branch, err)
		}
	}

	return b.plan, nil
}

type builder struct {
	fs   fsops.FS
	root string
	plan *MergePlan

	// owners maps each planned file to the branch that placed it last
	owners map[string]string
}

// relocate places a self-contained plugin under <stem>/ behind a root stub.
func (b *builder) relocate(src Source, entry *header.Entry) error {
	if err := b.fs.ValidateIdentifier(entry.Stem); err != nil {
		return fmt.Errorf("invalid entry file %s: %w", entry.File, err)
	}

	if err := b.copyTree(OpCopyTree, src, src.Dir, entry.Stem); err != nil {
		return err
	}

	stub := entry.Block.Relocate(entry.Stem).Stub(path.Join(entry.Stem, entry.File))
	b.plan.AddOperation(Operation{
		Type:     OpWriteStub,
		DestPath: filepath.Join(b.root, entry.File),
		RelPath:  entry.File,
		Branch:   src.Branch,
		Content:  stub,
	})
	b.claim(entry.File, src.Branch)
	return nil
}

// legacy merges modules/, root PHP files and the auxiliary allow-list.
func (b *builder) legacy(src Source) error {
	modules := filepath.Join(src.Dir, ModulesDir)
	if info, err := b.fs.Lstat(modules); err == nil && info.IsDir() {
		if err := b.copyTree(OpMergeDir, src, modules, ModulesDir); err != nil {
			return err
		}
	}

	entries, err := b.fs.ReadDir(src.Dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", src.Dir, err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(e.Name()), ".php") {
			continue
		}
		b.copyFile(src, e.Name())
	}

	for _, name := range LegacyAuxFiles {
		info, err := b.fs.Lstat(filepath.Join(src.Dir, name))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		b.copyFile(src, name)
	}
	return nil
}

func (b *builder) copyFile(src Source, name string) {
	b.plan.AddOperation(Operation{
		Type:       OpCopy,
		SourcePath: filepath.Join(src.Dir, name),
		DestPath:   filepath.Join(b.root, name),
		RelPath:    name,
		Branch:     src.Branch,
	})
	b.claim(name, src.Branch)
}

// copyTree plans a directory copy into relDest ("" for the root).
func (b *builder) copyTree(opType string, src Source, dir, relDest string) error {
	rel := relDest
	if rel == "" {
		rel = "."
	} else if err := b.fs.ValidateRelPath(rel); err != nil {
		return err
	}

	b.plan.AddOperation(Operation{
		Type:       opType,
		SourcePath: dir,
		DestPath:   filepath.Join(b.root, relDest),
		RelPath:    rel,
		Branch:     src.Branch,
	})

	files, err := b.listFiles(dir, relDest)
	if err != nil {
		return err
	}
	for _, f := range files {
		b.claim(f, src.Branch)
	}
	return nil
}

// listFiles returns every non-directory under dir as slash paths joined to
// prefix.
func (b *builder) listFiles(dir, prefix string) ([]string, error) {
	entries, err := b.fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		rel := path.Join(prefix, e.Name())
		if e.IsDir() {
			sub, err := b.listFiles(filepath.Join(dir, e.Name()), rel)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
			continue
		}
		files = append(files, rel)
	}
	return files, nil
}

func (b *builder) claim(rel, branch string) {
	if prev, ok := b.owners[rel]; ok && prev != branch {
		b.plan.AddOverride(Override{Path: rel, Previous: prev, Branch: branch})
	}
	b.owners[rel] = branch
}
