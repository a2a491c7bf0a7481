// Package feed discovers raw racing documents. The ingestion core is
// agnostic to whether a document came from a loose file or a zip member;
// both surface as a named byte slice.
package feed

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Document is one raw XML document plus a display name for logging and
// provenance. Zip members are named "archive.zip:member.xml".
type Document struct {
	Name string
	Body []byte
}

// Source yields the documents for one phase run.
type Source interface {
	Discover(ctx context.Context) ([]Document, error)
}

// DirSource reads loose *.xml files from a directory plus *.xml members of
// any *.zip archives in it.
type DirSource struct {
	Dir string
}

// NewDirSource creates a Source over the given directory.
func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir}
}

// Discover lists the directory's XML documents. An unreadable archive is
// logged and skipped; an unreadable directory is an error.
func (s *DirSource) Discover(ctx context.Context) ([]Document, error) {
	log := zap.L().With(zap.String("component", "feed"), zap.String("dir", s.Dir))

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, eris.Wrapf(err, "feed: read directory %s", s.Dir)
	}

	var docs []Document
	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "feed: discover cancelled")
		}
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(s.Dir, entry.Name())
		switch {
		case strings.EqualFold(filepath.Ext(entry.Name()), ".xml"):
			body, err := os.ReadFile(path)
			if err != nil {
				return nil, eris.Wrapf(err, "feed: read %s", path)
			}
			docs = append(docs, Document{Name: entry.Name(), Body: body})

		case strings.EqualFold(filepath.Ext(entry.Name()), ".zip"):
			members, err := readZipMembers(path)
			if err != nil {
				log.Warn("skipping unreadable archive",
					zap.String("archive", entry.Name()), zap.Error(err))
				continue
			}
			docs = append(docs, members...)
		}
	}

	log.Info("documents discovered", zap.Int("count", len(docs)))
	return docs, nil
}

// readZipMembers loads every XML member of an archive into memory, skipping
// macOS resource-fork entries.
func readZipMembers(zipPath string) ([]Document, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "feed: open archive")
	}
	defer r.Close() //nolint:errcheck

	var docs []Document
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(f.Name), ".xml") {
			continue
		}
		if strings.HasPrefix(f.Name, "__MACOSX") {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, eris.Wrapf(err, "feed: open archive member %s", f.Name)
		}
		body, err := io.ReadAll(rc)
		rc.Close() //nolint:errcheck
		if err != nil {
			return nil, eris.Wrapf(err, "feed: read archive member %s", f.Name)
		}

		docs = append(docs, Document{
			Name: filepath.Base(zipPath) + ":" + f.Name,
			Body: body,
		})
	}

	return docs, nil
}

// StaticSource serves a fixed document list; used by tests and by callers
// that already hold documents in memory.
type StaticSource []Document

func (s StaticSource) Discover(ctx context.Context) ([]Document, error) {
	return s, nil
}
