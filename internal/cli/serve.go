package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/matzehuels/shotframe/pkg/asset"
	"github.com/matzehuels/shotframe/pkg/cache"
	"github.com/matzehuels/shotframe/pkg/colors"
	"github.com/matzehuels/shotframe/pkg/config"
	"github.com/matzehuels/shotframe/pkg/errors"
	"github.com/matzehuels/shotframe/pkg/observability"
	"github.com/matzehuels/shotframe/pkg/square"
	"github.com/matzehuels/shotframe/pkg/viewport"
)

const (
	defaultAddr     = "127.0.0.1:8080"
	maxUploadBytes  = 20 << 20
	maxUploadPixels = 50_000_000
	maxSquareSize   = 4096
	shutdownTimeout = 5 * time.Second
)

// serveCommand creates the serve command exposing the compositor over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr  string
		flags cacheFlags
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve square crops and viewport sizes over HTTP",
		Long: `Serve square crops and viewport sizes over HTTP.

Endpoints:
  GET  /healthz        liveness probe
  GET  /v1/viewports   capture size per configured device (JSON)
  POST /v1/square      image body in, square PNG out
                       query: size, margin, background, no_upscale

Examples:
  shotframe serve --addr :8080
  curl --data-binary @full.png "localhost:8080/v1/square?margin=128" > sq.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, flags)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "listen address")
	flags.register(cmd)

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string, flags cacheFlags) error {
	cfg, err := c.loadConfig("")
	if err != nil {
		return err
	}
	store, keyer, err := c.openCache(ctx, flags, "serve")
	if err != nil {
		return err
	}
	defer store.Close()

	srv := &http.Server{
		Addr:              addr,
		Handler:           newServer(cfg, store, keyer, c.Logger).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	printSuccess("Listening on %s", StyleLink.Render("http://"+addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	c.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// =============================================================================
// Handlers
// =============================================================================

// server holds the state shared by the HTTP handlers.
type server struct {
	cfg    config.Config
	cache  cache.Cache
	keyer  cache.Keyer
	logger *log.Logger
}

func newServer(cfg config.Config, store cache.Cache, keyer cache.Keyer, logger *log.Logger) *server {
	if store == nil {
		store = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	return &server{cfg: cfg, cache: store, keyer: keyer, logger: logger}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})
	r.Route("/v1", func(r chi.Router) {
		r.Get("/viewports", s.handleViewports)
		r.Post("/square", s.handleSquare)
	})
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}

// viewportInfo is one entry of the /v1/viewports response.
type viewportInfo struct {
	Kind     string        `json:"kind"`
	Class    config.Class  `json:"class"`
	Region   config.Region `json:"region"`
	Viewport viewport.Spec `json:"viewport"`
}

func (s *server) handleViewports(w http.ResponseWriter, r *http.Request) {
	sel := viewport.New(s.cfg)
	out := make([]viewportInfo, 0, len(s.cfg.Devices))
	for _, d := range s.cfg.Devices {
		spec, err := sel.Select(d, d.Region.W, d.Region.H)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out = append(out, viewportInfo{Kind: d.Kind, Class: d.Class, Region: d.Region, Viewport: spec})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleSquare(w http.ResponseWriter, r *http.Request) {
	opts, bgHex, err := s.squareOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "read body"))
		return
	}

	ctx := r.Context()
	key := s.keyer.SquareKey(cache.Hash(data), cache.SquareKeyOpts{
		Size:       opts.Size,
		Margin:     opts.Margin,
		Background: bgHex,
		NoUpscale:  opts.NoUpscale,
	})
	hooks := observability.Cache()
	if png, hit, err := s.cache.Get(ctx, key); err == nil && hit {
		hooks.OnCacheHit(ctx, "square")
		writePNG(w, png, true)
		return
	}
	hooks.OnCacheMiss(ctx, "square")

	src, err := asset.FromBytes(data, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if int64(src.Width)*int64(src.Height) > maxUploadPixels {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "image is %dx%d, at most %d pixels are accepted", src.Width, src.Height, maxUploadPixels))
		return
	}
	img, err := src.Decode()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sq, err := square.Compose(img, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := square.EncodePNG(&buf, sq); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.cache.Set(ctx, key, buf.Bytes(), cache.TTLSquare); err == nil {
		hooks.OnCacheSet(ctx, "square", buf.Len())
	}
	writePNG(w, buf.Bytes(), false)
}

// squareOptions reads the compositor options from the query string. Unset
// values fall back to the full-page square settings. The returned string is
// the background as #rrggbbaa for cache keys.
func (s *server) squareOptions(r *http.Request) (square.Options, string, error) {
	q := r.URL.Query()
	opts := square.Options{Size: s.cfg.Square.Size, Margin: s.cfg.Square.FullPageMargin}

	for name, dst := range map[string]*int{"size": &opts.Size, "margin": &opts.Margin} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return square.Options{}, "", errors.Wrap(errors.ErrCodeInvalidInput, err, "%s must be an integer", name)
			}
			*dst = n
		}
	}
	if opts.Size <= 0 || opts.Size > maxSquareSize {
		return square.Options{}, "", errors.New(errors.ErrCodeInvalidInput, "size must be within 1..%d, got %d", maxSquareSize, opts.Size)
	}
	if opts.Margin < 0 {
		return square.Options{}, "", errors.New(errors.ErrCodeInvalidInput, "margin must not be negative, got %d", opts.Margin)
	}
	if v := q.Get("no_upscale"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return square.Options{}, "", errors.Wrap(errors.ErrCodeInvalidInput, err, "no_upscale must be a boolean")
		}
		opts.NoUpscale = b
	}

	bg := colors.First(q.Get("background"), s.cfg.Square.NeutralBackground)
	c, err := colors.Parse(bg)
	if err != nil {
		return square.Options{}, "", err
	}
	opts.Background = c
	return opts, colors.HexAlpha(c), nil
}

// =============================================================================
// Responses
// =============================================================================

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidColor, errors.ErrCodeUnsupportedFormat:
		status = http.StatusBadRequest
	}
	s.logger.Warn("request failed", "id", middleware.GetReqID(r.Context()), "status", status, "err", err)

	code := string(errors.GetCode(err))
	if code == "" {
		code = string(errors.ErrCodeInternal)
	}
	writeJSON(w, status, errorBody{Code: code, Message: errors.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writePNG(w http.ResponseWriter, data []byte, cached bool) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if cached {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	w.Write(data)
}
