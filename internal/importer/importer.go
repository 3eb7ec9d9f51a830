package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/curation"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/logging"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

// Submitter is the queue entry point the importer feeds.
type Submitter interface {
	Submit(ctx context.Context, req curation.SubmitRequest) (*types.CurationItem, error)
}

// Options control one import run.
type Options struct {
	// DefaultNamespace applies to notes at the root with no namespace in frontmatter.
	DefaultNamespace string

	// SubmittedBy is recorded on notes whose frontmatter names no author.
	SubmittedBy string

	// ExtraTags are added to every note.
	ExtraTags []string
}

// Result summarises an import run.
type Result struct {
	Found      int
	Queued     int
	Duplicates int
	Skipped    int
	Failed     int
	ItemIDs    []string
	Errors     []string
	Duration   time.Duration
}

// Importer walks a directory and submits every Markdown note and HTML page.
type Importer struct {
	submitter Submitter
	html      *htmlConverter
	logger    logrus.FieldLogger
}

// New creates an Importer.
func New(submitter Submitter, logger logrus.FieldLogger) *Importer {
	return &Importer{submitter: submitter, html: newHTMLConverter(), logger: logging.OrDiscard(logger).WithField("component", "importer")}
}

// ImportDir submits every .md, .markdown, .html and .htm file under root, skipping hidden
// directories. Per-file problems are collected in the result; only a walk
// failure or cancellation aborts the run.
func (imp *Importer) ImportDir(ctx context.Context, root string, opts Options) (*Result, error) {
	start := time.Now()
	files, err := collectNoteFiles(root)
	if err != nil {
		return nil, fmt.Errorf("import: failed to walk %s: %w", root, err)
	}

	res := &Result{Found: len(files)}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			return res, err
		}
		rel, _ := filepath.Rel(root, path)
		imp.importFile(ctx, path, rel, opts, res)
	}
	res.Duration = time.Since(start)

	imp.logger.WithFields(logrus.Fields{
		"root":       root,
		"found":      res.Found,
		"queued":     res.Queued,
		"duplicates": res.Duplicates,
		"skipped":    res.Skipped,
		"failed":     res.Failed,
	}).Info("import finished")
	return res, nil
}

func (imp *Importer) importFile(ctx context.Context, path, rel string, opts Options, res *Result) {
	log := imp.logger.WithField("file", rel)

	data, err := os.ReadFile(path)
	if err != nil {
		res.Failed++
		res.Errors = append(res.Errors, fmt.Sprintf("%s: read error: %v", rel, err))
		return
	}

	var note *Note
	if isHTML(path) {
		note, err = imp.html.ParseHTML(data, rel, opts.DefaultNamespace)
	} else {
		note, err = ParseNote(data, rel, opts.DefaultNamespace)
	}
	if err != nil {
		res.Failed++
		res.Errors = append(res.Errors, err.Error())
		return
	}
	if note.Body == "" {
		res.Skipped++
		log.Debug("skipping empty note")
		return
	}

	submittedBy := note.Author
	if submittedBy == "" {
		submittedBy = opts.SubmittedBy
	}

	item, err := imp.submitter.Submit(ctx, curation.SubmitRequest{
		Title:       note.Title,
		Body:        note.Body,
		Namespaces:  note.Namespaces,
		Tags:        mergeTags(note.Tags, opts.ExtraTags),
		SubmittedBy: submittedBy,
	})
	var dup *curation.DuplicateContentError
	switch {
	case errors.As(err, &dup):
		res.Duplicates++
		log.WithField("matched_id", dup.MatchedID).Info("note duplicates existing content")
	case err != nil:
		res.Failed++
		res.Errors = append(res.Errors, fmt.Sprintf("%s: submit error: %v", rel, err))
		log.WithError(err).Warn("failed to queue note")
	default:
		res.Queued++
		res.ItemIDs = append(res.ItemIDs, item.ID)
	}
}

func isHTML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".html" || ext == ".htm"
}

func collectNoteFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".md", ".markdown", ".html", ".htm":
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
