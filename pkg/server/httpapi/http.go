package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/jacktea/massmedia/pkg/media"
	"github.com/jacktea/massmedia/pkg/server/middleware"
	"github.com/jacktea/massmedia/pkg/source"
	"github.com/jacktea/massmedia/pkg/xerrors"
)

// StagingDir is the hidden directory under the upload root that holds
// multipart parts until they are named and moved.
const StagingDir = ".staging"

// DefaultMaxUploadBytes caps a single upload request body.
const DefaultMaxUploadBytes int64 = 64 << 20

const maxFieldBytes = 4 << 10

// Server exposes a media.Store over HTTP+JSON.
type Server struct {
	Store *media.Store
	Log   *zap.Logger
	Opts  Options
}

// Options configure auth, rate limiting and request size.
type Options struct {
	APIKey         string
	RateLimit      middleware.RateLimitOptions
	MaxUploadBytes int64
}

type storedFile struct {
	FileName string `json:"file_name"`
	WebPath  string `json:"web_path"`
}

type uploadResponse struct {
	Files []storedFile `json:"files"`
}

type remoteRequest struct {
	URIs   []string `json:"uris"`
	Unique string   `json:"unique"`
}

type pathResponse struct {
	FileName      string `json:"file_name"`
	WebPath       string `json:"web_path"`
	SubFolderPath string `json:"sub_folder_path"`
	AbsolutePath  string `json:"absolute_path"`
}

// Start begins listening on addr until ctx is canceled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	s.logger().Info("http listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the routed and wrapped API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.Recoverer, middleware.RequestLogger(s.logger()))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Group(func(r chi.Router) {
		r.Use(middleware.Compact(
			middleware.APIKeyAuth(s.Opts.APIKey),
			middleware.RateLimit(s.Opts.RateLimit),
		)...)
		r.Post("/uploads", s.handleUpload)
		r.Post("/uploads/remote", s.handleRemoteUpload)
		r.Get("/files/{name}", s.serveFile)
		r.Head("/files/{name}", s.serveFile)
		r.Delete("/files/{name}", s.deleteFile)
		r.Get("/paths/{name}", s.describePath)
	})
	return r
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Server) maxUpload() int64 {
	if s.Opts.MaxUploadBytes > 0 {
		return s.Opts.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload())
	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expected multipart/form-data body", http.StatusBadRequest)
		return
	}
	files, unique, err := s.stageParts(mr)
	defer s.discard(files)
	if err != nil {
		httpError(w, err)
		return
	}
	if len(files) == 0 {
		http.Error(w, "no file parts", http.StatusBadRequest)
		return
	}
	names, err := s.Store.UploadBatch(r.Context(), files, unique)
	if err != nil {
		httpError(w, err)
		return
	}
	s.writeStored(w, names)
}

// stageParts copies every "file" part into the staging directory. Parts are
// staged before naming because the unique field may follow them.
func (s *Server) stageParts(mr *multipart.Reader) ([]media.UploadedFile, string, error) {
	fsys := s.Store.FS()
	staging := filepath.Join(s.Store.UploadRootDir(), StagingDir)
	var (
		files  []media.UploadedFile
		unique string
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return files, unique, nil
		}
		if err != nil {
			return files, unique, xerrors.Wrap(xerrors.KindType, "httpapi.multipart", "", err)
		}
		switch part.FormName() {
		case "unique":
			raw, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
			part.Close()
			if err != nil {
				return files, unique, xerrors.Wrap(xerrors.KindType, "httpapi.multipart", "unique", err)
			}
			unique = string(raw)
		case "file":
			if err := fsys.MkdirAll(staging, 0o755); err != nil {
				part.Close()
				return files, unique, xerrors.IO("httpapi.staging", staging, err)
			}
			tmp, err := fsys.TempFile(staging, "part-")
			if err != nil {
				part.Close()
				return files, unique, xerrors.IO("httpapi.staging", staging, err)
			}
			files = append(files, &media.LocalFile{Name: part.FileName(), File: tmp.Name()})
			_, copyErr := io.Copy(tmp, part)
			closeErr := tmp.Close()
			part.Close()
			if copyErr != nil {
				return files, unique, xerrors.Wrap(xerrors.KindType, "httpapi.multipart", part.FileName(), copyErr)
			}
			if closeErr != nil {
				return files, unique, xerrors.IO("httpapi.staging", tmp.Name(), closeErr)
			}
		default:
			part.Close()
		}
	}
}

// discard removes staged parts that were not moved into the store.
func (s *Server) discard(files []media.UploadedFile) {
	for _, f := range files {
		_ = s.Store.FS().Remove(f.Path())
	}
}

func (s *Server) handleRemoteUpload(w http.ResponseWriter, r *http.Request) {
	var req remoteRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, s.maxUpload())).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if len(req.URIs) == 0 {
		http.Error(w, "uris is required", http.StatusBadRequest)
		return
	}
	// Local paths and file:// would expose the server's own files.
	for _, uri := range req.URIs {
		if !source.IsRemote(uri) {
			httpError(w, xerrors.Wrap(xerrors.KindType, "httpapi.remote", uri, errors.New("only http and https sources are accepted")))
			return
		}
	}
	names, err := s.Store.UploadBatchFromURIs(r.Context(), req.URIs, req.Unique)
	if err != nil {
		httpError(w, err)
		return
	}
	s.writeStored(w, names)
}

func (s *Server) writeStored(w http.ResponseWriter, names []string) {
	resp := uploadResponse{Files: make([]storedFile, 0, len(names))}
	for _, name := range names {
		web, _ := s.Store.WebPath(name)
		resp.Files = append(resp.Files, storedFile{FileName: name, WebPath: web})
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	rc, size, err := s.Store.Open(r.Context(), name)
	if err != nil {
		httpError(w, err)
		return
	}
	defer rc.Close()
	if ctype := mime.TypeByExtension(filepath.Ext(name)); ctype != "" {
		w.Header().Set("Content-Type", ctype)
	}
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, time.Time{}, rs)
		return
	}
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = io.Copy(w, rc)
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	keep, _ := strconv.ParseBool(r.URL.Query().Get("keep_folders"))
	if err := s.Store.Remove(r.Context(), chi.URLParam(r, "name"), !keep); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) describePath(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if strings.ContainsAny(name, `/\`) {
		httpError(w, xerrors.E(xerrors.KindType, "httpapi.paths", name))
		return
	}
	web, ok := s.Store.WebPath(name)
	if !ok {
		httpError(w, xerrors.E(xerrors.KindType, "httpapi.paths", name))
		return
	}
	sub, _ := s.Store.SubFolderPath(name)
	abs, _ := s.Store.AbsoluteFilePath(name)
	writeJSON(w, http.StatusOK, pathResponse{
		FileName:      name,
		WebPath:       web,
		SubFolderPath: sub,
		AbsolutePath:  abs,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		status = http.StatusRequestEntityTooLarge
	default:
		switch xerrors.KindOf(err) {
		case xerrors.KindType, xerrors.KindConfig:
			status = http.StatusBadRequest
		case xerrors.KindNotFound:
			status = http.StatusNotFound
		case xerrors.KindPermission:
			status = http.StatusForbidden
		}
	}
	http.Error(w, err.Error(), status)
}
