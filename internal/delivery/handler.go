package delivery

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"lessonstream/internal/asset"
	"lessonstream/internal/platform/metrics"
	"lessonstream/internal/storage"
	"lessonstream/internal/transcode"
)

const (
	manifestContentType = "application/vnd.apple.mpegurl"
	segmentContentType  = "video/mp2t"

	// DefaultMaxUploadBytes caps multipart uploads (500 MB, matching the
	// subscription platform's limit).
	DefaultMaxUploadBytes int64 = 500 << 20

	uploadDir = "uploads"
)

// segmentNamePattern constrains segment names to the encoder's output shape;
// anything else never reaches the filesystem.
var segmentNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.ts$`)

// allowedUploadExts are the accepted source container extensions.
var allowedUploadExts = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
}

// Enqueuer dispatches a transcode task for (lessonID, generation).
type Enqueuer interface {
	Enqueue(lessonID, generation int64, sourcePath string) error
}

// Handler exposes the delivery gateway endpoints using go-chi.
type Handler struct {
	assets   asset.Store
	files    storage.Storage
	tokens   *TokenService
	rewriter *PlaylistRewriter
	oracle   Oracle
	queue    Enqueuer
	log      *slog.Logger
	metrics  *metrics.Metrics

	// MaxUploadBytes overrides DefaultMaxUploadBytes when positive.
	MaxUploadBytes int64
}

// NewHandler returns a Handler. Metrics may be nil to disable metric
// recording (e.g. in tests).
func NewHandler(assets asset.Store, files storage.Storage, tokens *TokenService, rewriter *PlaylistRewriter, oracle Oracle, queue Enqueuer, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		assets:   assets,
		files:    files,
		tokens:   tokens,
		rewriter: rewriter,
		oracle:   oracle,
		queue:    queue,
		log:      log,
		metrics:  m,
	}
}

// Routes mounts the gateway endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/lessons/{lessonID}", func(r chi.Router) {
		r.Post("/video", h.UploadVideo)
		r.Delete("/video", h.DeleteVideo)
		r.Get("/playlist", h.GetPlaylist)
		r.Get("/key", h.GetKey)
		r.Get("/status", h.GetStatus)
	})
	r.Get("/segments/{lessonID}/{segment}", h.GetSegment)
}

func (h *Handler) maxUploadBytes() int64 {
	if h.MaxUploadBytes > 0 {
		return h.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}

// UploadVideo handles POST /lessons/{lessonID}/video: multipart field
// "video", admin identity required. Any previous stream and temp source for
// the lesson are purged before the new transcode is dispatched.
func (h *Handler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := lessonIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lesson id")
		return
	}
	user, ok := UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !user.Admin {
		writeError(w, http.StatusForbidden, "admin identity required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes())
	file, header, err := r.FormFile("video")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'video' is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(path.Ext(header.Filename))
	if !allowedUploadExts[ext] {
		writeError(w, http.StatusBadRequest, "unsupported video format")
		return
	}

	// A re-upload supersedes whatever exists: old output and temp source go
	// first, then the fresh source lands under an unguessable name.
	if prev, ok, err := h.assets.Get(lessonID); err != nil {
		h.internalError(w, r, "load asset", err)
		return
	} else if ok {
		if err := h.files.RemoveAll(transcode.LessonDir(lessonID)); err != nil {
			h.internalError(w, r, "purge previous stream", err)
			return
		}
		if prev.SourcePath != "" {
			if err := h.files.Remove(prev.SourcePath); err != nil {
				h.internalError(w, r, "purge previous source", err)
				return
			}
		}
	}

	sourcePath := path.Join(uploadDir, uuid.New().String()+ext)
	n, err := h.files.WriteFrom(sourcePath, file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = h.files.Remove(sourcePath)
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		h.internalError(w, r, "save upload", err)
		return
	}
	if n == 0 {
		_ = h.files.Remove(sourcePath)
		writeError(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	generation, err := h.assets.BeginProcessing(lessonID, sourcePath)
	if err != nil {
		h.internalError(w, r, "begin processing", err)
		return
	}
	if err := h.queue.Enqueue(lessonID, generation, sourcePath); err != nil {
		h.internalError(w, r, "enqueue transcode", err)
		return
	}

	if h.metrics != nil {
		h.metrics.IncUploads()
	}
	h.log.Info("video upload accepted",
		"lesson_id", lessonID,
		"user_id", user.ID,
		"size_bytes", n,
		"generation", generation,
	)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"lesson_id": lessonID,
		"status":    asset.StatusProcessing,
		"message":   "upload accepted, processing and encrypting",
	})
}

// GetPlaylist handles GET /lessons/{lessonID}/playlist: authorize, read the
// raw manifest, rewrite every reference with fresh tokens, return uncacheable.
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := lessonIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lesson id")
		return
	}
	user, ok := h.authorize(w, r, lessonID)
	if !ok {
		return
	}

	a, ok, err := h.assets.Get(lessonID)
	if err != nil {
		h.internalError(w, r, "load asset", err)
		return
	}
	if !ok || a.Status != asset.StatusReady || !h.files.Exists(a.ManifestPath) {
		writeError(w, http.StatusNotFound, "video not available")
		return
	}

	manifest, err := h.files.Read(a.ManifestPath)
	if err != nil {
		h.internalError(w, r, "read manifest", err)
		return
	}
	rewritten, err := h.rewriter.Rewrite(string(manifest), lessonID, user.ID)
	if err != nil {
		h.internalError(w, r, "rewrite manifest", err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncTokensIssued()
	}

	w.Header().Set("Content-Type", manifestContentType)
	noStore(w)
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, rewritten)
}

// GetSegment handles GET /segments/{lessonID}/{segment}?token=...: authorize,
// validate the capability token against the exact (lesson, segment, user),
// then stream the encrypted bytes.
func (h *Handler) GetSegment(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := lessonIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lesson id")
		return
	}
	segment := chi.URLParam(r, "segment")
	if !segmentNamePattern.MatchString(segment) {
		writeError(w, http.StatusBadRequest, "invalid segment name")
		return
	}
	user, ok := h.authorize(w, r, lessonID)
	if !ok {
		return
	}

	if !h.tokens.Validate(r.URL.Query().Get("token"), lessonID, segment, user.ID) {
		// Expected traffic: clients hit this whenever a token ages out.
		if h.metrics != nil {
			h.metrics.IncTokensDenied()
		}
		h.log.Debug("segment token rejected", "lesson_id", lessonID, "segment", segment, "user_id", user.ID)
		writeError(w, http.StatusForbidden, "link expired")
		return
	}

	a, ok, err := h.assets.Get(lessonID)
	if err != nil {
		h.internalError(w, r, "load asset", err)
		return
	}
	if !ok || a.Status != asset.StatusReady {
		writeError(w, http.StatusNotFound, "video not available")
		return
	}

	segPath := path.Join(a.OutputDir, segment)
	f, err := h.files.Open(segPath)
	if err != nil {
		writeError(w, http.StatusNotFound, "segment not found")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", segmentContentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		h.log.Debug("segment stream interrupted", "lesson_id", lessonID, "segment", segment, "error", err)
	}
}

// GetKey handles GET /lessons/{lessonID}/key: authorize, then stream the raw
// 16-byte key with anti-indexing headers and no caching. The key endpoint
// carries its own access recheck instead of a token.
func (h *Handler) GetKey(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := lessonIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lesson id")
		return
	}
	if _, ok := h.authorize(w, r, lessonID); !ok {
		return
	}

	a, ok, err := h.assets.Get(lessonID)
	if err != nil {
		h.internalError(w, r, "load asset", err)
		return
	}
	if !ok || a.Status != asset.StatusReady {
		writeError(w, http.StatusNotFound, "encryption key not available")
		return
	}

	key, err := h.files.Read(a.KeyPath)
	if err != nil {
		writeError(w, http.StatusNotFound, "encryption key not available")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Robots-Tag", "noindex, nofollow, nosnippet, noarchive")
	noStore(w)
	w.WriteHeader(http.StatusOK)
	w.Write(key)
}

// GetStatus handles GET /lessons/{lessonID}/status. Identity is required but
// the full access check is not; clients poll this during transcode.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := lessonIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lesson id")
		return
	}
	if _, ok := UserFrom(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	status := asset.StatusAbsent
	if a, ok, err := h.assets.Get(lessonID); err != nil {
		h.internalError(w, r, "load asset", err)
		return
	} else if ok {
		status = a.Status
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"lesson_id": lessonID,
		"status":    status,
		"available": status == asset.StatusReady,
		"message":   statusMessage(status),
	})
}

// DeleteVideo handles DELETE /lessons/{lessonID}/video (admin): removes the
// output directory and any temp source, and resets the asset to absent.
func (h *Handler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := lessonIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lesson id")
		return
	}
	user, ok := UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !user.Admin {
		writeError(w, http.StatusForbidden, "admin identity required")
		return
	}

	if a, ok, err := h.assets.Get(lessonID); err != nil {
		h.internalError(w, r, "load asset", err)
		return
	} else if ok && a.SourcePath != "" {
		if err := h.files.Remove(a.SourcePath); err != nil {
			h.internalError(w, r, "remove temp source", err)
			return
		}
	}
	if err := h.files.RemoveAll(transcode.LessonDir(lessonID)); err != nil {
		h.internalError(w, r, "remove stream directory", err)
		return
	}
	if err := h.assets.Reset(lessonID); err != nil {
		h.internalError(w, r, "reset asset", err)
		return
	}

	h.log.Info("video deleted", "lesson_id", lessonID, "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"lesson_id": lessonID,
		"message":   "video deleted",
	})
}

// authorize resolves the request identity and runs the authorization oracle,
// writing 401/403 and returning ok=false on denial. No filesystem access
// happens before this passes.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, lessonID int64) (User, bool) {
	user, ok := UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return User{}, false
	}
	allowed, err := h.oracle.CanAccess(r.Context(), user, lessonID)
	if err != nil {
		h.internalError(w, r, "authorization check", err)
		return User{}, false
	}
	if !allowed {
		h.log.Debug("access denied", "lesson_id", lessonID, "user_id", user.ID)
		writeError(w, http.StatusForbidden, "you are not allowed to view this lesson")
		return User{}, false
	}
	return user, true
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.log.Error(op+" failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func lessonIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "lessonID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func statusMessage(s asset.Status) string {
	switch s {
	case asset.StatusProcessing:
		return "video is being processed and encrypted"
	case asset.StatusReady:
		return "video is ready for playback"
	case asset.StatusFailed:
		return "video processing failed"
	default:
		return "no video uploaded yet"
	}
}

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
