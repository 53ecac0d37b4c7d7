package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"lessonstream/internal/asset"
	"lessonstream/internal/storage"
)

var (
	// ErrFatal marks failures that retrying cannot help (bad source, broken
	// random source, unwritable output). The queue stops retrying on it.
	ErrFatal = errors.New("not retryable")

	// ErrSuperseded is returned when a newer upload bumped the asset
	// generation while this task ran; the task's output was discarded.
	ErrSuperseded = errors.New("transcode superseded by newer upload")
)

// LessonDir returns the storage directory holding all of a lesson's stream
// generations.
func LessonDir(lessonID int64) string {
	return fmt.Sprintf("hls/lesson_%d", lessonID)
}

// outputDir returns the generation-scoped output directory, so a stale worker
// never writes into the directory a newer one is filling.
func outputDir(lessonID, generation int64) string {
	return fmt.Sprintf("%s/g%d", LessonDir(lessonID), generation)
}

// Worker converts exactly one source video into an encrypted segmented
// stream and publishes the result against its generation.
type Worker struct {
	assets asset.Store
	files  storage.Storage
	enc    Encoder
	keyURL func(lessonID int64) string
	log    *slog.Logger
}

// NewWorker returns a Worker. keyURL must render the externally reachable
// key-delivery URL for a lesson; it ends up inside the generated manifest.
func NewWorker(assets asset.Store, files storage.Storage, enc Encoder, keyURL func(lessonID int64) string, log *slog.Logger) *Worker {
	return &Worker{assets: assets, files: files, enc: enc, keyURL: keyURL, log: log}
}

// Process runs one transcode attempt for (lessonID, generation). It is safe
// to re-run after a failure: the output directory is reset first. On
// transient failure the asset is marked failed (CAS on generation) and the
// partial output removed; the caller decides whether to retry.
func (w *Worker) Process(ctx context.Context, lessonID, generation int64, sourcePath string) error {
	out := outputDir(lessonID, generation)

	fail := func(err error) error {
		if _, ferr := w.assets.FailProcessing(lessonID, generation, err.Error()); ferr != nil {
			w.log.Error("record transcode failure", "lesson_id", lessonID, "error", ferr)
		}
		if cerr := w.files.RemoveAll(out); cerr != nil {
			w.log.Error("clean output directory", "lesson_id", lessonID, "error", cerr)
		}
		return err
	}

	if !w.files.Exists(sourcePath) {
		return fail(fmt.Errorf("source upload missing at %s: %w", sourcePath, ErrFatal))
	}
	if n, err := w.files.Size(sourcePath); err != nil || n == 0 {
		return fail(fmt.Errorf("source upload empty at %s: %w", sourcePath, ErrFatal))
	}

	// Idempotent reset: drop whatever a previous attempt left behind.
	if err := w.files.RemoveAll(out); err != nil {
		return fail(fmt.Errorf("reset output directory: %v: %w", err, ErrFatal))
	}
	if err := w.files.MkdirAll(out); err != nil {
		return fail(fmt.Errorf("create output directory: %v: %w", err, ErrFatal))
	}

	material, err := GenerateKeyMaterial()
	if err != nil {
		return fail(fmt.Errorf("%v: %w", err, ErrFatal))
	}
	keyPath := path.Join(out, KeyFileName)
	if err := w.files.Write(keyPath, material.Key); err != nil {
		return fail(fmt.Errorf("write key file: %v: %w", err, ErrFatal))
	}
	keyInfoPath := path.Join(out, KeyInfoName)
	keyInfo := KeyInfo(w.keyURL(lessonID), w.files.Abs(keyPath), material.IVHex)
	if err := w.files.Write(keyInfoPath, keyInfo); err != nil {
		return fail(fmt.Errorf("write key-info record: %v: %w", err, ErrFatal))
	}

	if err := w.enc.Transcode(ctx, w.files.Abs(sourcePath), w.files.Abs(out), w.files.Abs(keyInfoPath)); err != nil {
		return fail(fmt.Errorf("encode: %w", err))
	}

	manifestPath := path.Join(out, ManifestName)
	if err := w.verify(manifestPath, keyPath); err != nil {
		return fail(fmt.Errorf("verify: %w", err))
	}

	pub := asset.Published{
		OutputDir:    out,
		ManifestPath: manifestPath,
		KeyPath:      keyPath,
	}
	if n, err := w.files.Size(sourcePath); err == nil {
		pub.SizeBytes = n
	}
	if p, ok := w.enc.(Prober); ok {
		if d, err := p.Duration(ctx, w.files.Abs(sourcePath)); err == nil {
			pub.DurationSeconds = d
		} else {
			w.log.Debug("probe duration", "lesson_id", lessonID, "error", err)
		}
	}

	swapped, err := w.assets.CompleteProcessing(lessonID, generation, pub)
	if err != nil {
		return fail(fmt.Errorf("publish asset: %w", err))
	}
	if !swapped {
		if cerr := w.files.RemoveAll(out); cerr != nil {
			w.log.Error("discard superseded output", "lesson_id", lessonID, "error", cerr)
		}
		w.log.Info("transcode superseded", "lesson_id", lessonID, "generation", generation)
		return ErrSuperseded
	}

	w.purgeStaleGenerations(lessonID, generation)

	if err := w.files.Remove(sourcePath); err != nil {
		w.log.Error("remove temp source", "lesson_id", lessonID, "error", err)
	}

	w.log.Info("transcode ready",
		"lesson_id", lessonID,
		"generation", generation,
		"manifest", manifestPath,
	)
	return nil
}

// verify enforces the ready invariant: non-empty manifest referencing at
// least one segment, and a key file of exactly 16 bytes.
func (w *Worker) verify(manifestPath, keyPath string) error {
	manifest, err := w.files.Read(manifestPath)
	if err != nil {
		return fmt.Errorf("playlist not created: %v", err)
	}
	if len(manifest) == 0 {
		return errors.New("playlist is empty")
	}
	if !strings.Contains(string(manifest), ".ts") {
		return errors.New("playlist references no segments")
	}
	n, err := w.files.Size(keyPath)
	if err != nil {
		return fmt.Errorf("key file missing: %v", err)
	}
	if n != KeySize {
		return fmt.Errorf("key file is %d bytes, want %d", n, KeySize)
	}
	return nil
}

// purgeStaleGenerations removes sibling generation directories so the lesson
// ends up with exactly one consistent output directory.
func (w *Worker) purgeStaleGenerations(lessonID, generation int64) {
	dir := LessonDir(lessonID)
	keep := fmt.Sprintf("g%d", generation)
	names, err := w.files.List(dir)
	if err != nil {
		w.log.Error("list lesson directory", "lesson_id", lessonID, "error", err)
		return
	}
	for _, name := range names {
		if name == keep {
			continue
		}
		if err := w.files.RemoveAll(path.Join(dir, name)); err != nil {
			w.log.Error("purge stale generation", "lesson_id", lessonID, "dir", name, "error", err)
		}
	}
}
