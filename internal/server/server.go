// Package server serves the kbye codec over HTTP.
//
// GET /?e=<text> encodes and GET /?d=<words> decodes, returning the same page data the web front end renders.
// POST /api/encode and POST /api/decode stream a request body through the codec, and GET /api/words lists the
// dictionary.
package server

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/gzhttp"
	"github.com/tliron/commonlog"

	"github.com/quackduck/kbye"
	"github.com/quackduck/kbye/internal/config"

	_ "github.com/tliron/commonlog/simple"
)

const shutdownTimeout = 5 * time.Second

// Server handles kbye HTTP requests.
type Server struct {
	coding  *kbye.Coding
	cache   *lru.Cache[string, string] // normalised word stream -> decoded text
	dictSum uint64                     // fingerprint of the dictionary, part of every ETag
	maxBody int64
	log     commonlog.Logger
	mux     *http.ServeMux
}

// New creates a Server that uses coding. Decoded results are cached when cfg.CacheSize is positive.
func New(coding *kbye.Coding, cfg config.Server) (*Server, error) {
	s := &Server{
		coding:  coding,
		dictSum: fingerprint(coding.Dictionary()),
		maxBody: cfg.MaxBody,
		log:     commonlog.GetLogger("kbye.server"),
		mux:     http.NewServeMux(),
	}
	if cfg.CacheSize > 0 {
		var err error
		if s.cache, err = lru.New[string, string](cfg.CacheSize); err != nil {
			return nil, err
		}
	}
	s.mux.HandleFunc("GET /{$}", s.handlePage)
	s.mux.HandleFunc("GET /api/words", s.handleWords)
	s.mux.HandleFunc("POST /api/encode", s.handleEncode)
	s.mux.HandleFunc("POST /api/decode", s.handleDecode)
	return s, nil
}

// fingerprint hashes the groups of d, so that two dictionaries only share ETags if they decode alike.
func fingerprint(d *kbye.Dictionary) uint64 {
	h := xxhash.New()
	for _, group := range d.Groups() {
		for _, w := range group {
			h.WriteString(w)
			h.WriteString(" ")
		}
		h.WriteString("\n")
	}
	return h.Sum64()
}

// Handler returns the root handler, with request logging and gzip compression.
func (s *Server) Handler() http.Handler {
	return gzhttp.GzipHandler(s.logRequests(s.mux))
}

// Run listens on addr and serves until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Infof("listening on %s", ln.Addr())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Page is what the front end renders for a ?e= or ?d= link.
type Page struct {
	Input string `json:"input"`
	// Output is JSON text, so decoded bytes that are not valid UTF-8 come out as U+FFFD.
	Output string `json:"output"`
	// Mode is "e" or "d", or nil when there was nothing (valid) to do.
	Mode       *string `json:"mode"`
	PreviewURL *string `json:"previewUrl"`
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var page Page
	switch e, d := q.Get("e"), q.Get("d"); {
	case e != "":
		page = Page{Input: e, Output: s.coding.EncodeString(e)}
		page.setMode("e")
		w.Header().Set("Cache-Control", "no-store") // different synonyms every time
	case d != "":
		// the body echoes d as given, so the ETag covers the raw input
		etag := `"` + strconv.FormatUint(s.dictSum, 16) + "-" + strconv.FormatUint(xxhash.Sum64String(d), 16) + `"`
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		out, err := s.decode(normalise(d))
		if err != nil {
			// invalid input: render an empty page, like the front end does
			s.log.Debugf("ignoring %v", err)
			break
		}
		page = Page{Input: d, Output: out}
		page.setMode("d")
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (p *Page) setMode(mode string) {
	p.Mode = &mode
	preview := "/api/og?" + url.Values{mode: {p.Input}}.Encode()
	p.PreviewURL = &preview
}

// normalise turns a word stream into the form every equivalent stream shares.
func normalise(words string) string {
	return strings.ToLower(strings.Join(strings.Fields(words), " "))
}

func (s *Server) decode(key string) (string, error) {
	if s.cache != nil {
		if out, ok := s.cache.Get(key); ok {
			return out, nil
		}
	}
	out, err := s.coding.DecodeString(key)
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		s.cache.Add(key, out)
	}
	return out, nil
}

// Words is the response of GET /api/words.
type Words struct {
	BitsPerWord int        `json:"bitsPerWord"`
	Groups      [][]string `json:"groups"`
	All         []string   `json:"all"`
}

func (s *Server) handleWords(w http.ResponseWriter, _ *http.Request) {
	d := s.coding.Dictionary()
	s.writeJSON(w, http.StatusOK, Words{BitsPerWord: kbye.BitsPerWord, Groups: d.Groups(), All: d.All()})
}

// Error is the body of failed API responses.
type Error struct {
	Error string `json:"error"`
	Word  string `json:"word,omitempty"`
}

func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.coding.Encode(&buf, http.MaxBytesReader(w, r.Body, s.maxBody)); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.coding.Decode(&buf, http.MaxBytesReader(w, r.Body, s.maxBody)); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(buf.Bytes())
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		uw      *kbye.UnknownWordError
		tooBig  *http.MaxBytesError
		status  = http.StatusBadRequest
		payload = Error{Error: err.Error()}
	)
	switch {
	case errors.As(err, &uw):
		status = http.StatusUnprocessableEntity
		payload.Word = uw.Word
	case errors.As(err, &tooBig):
		status = http.StatusRequestEntityTooLarge
	default:
		s.log.Errorf("reading request body: %v", err)
	}
	s.writeJSON(w, status, payload)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Errorf("encoding response: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(b, '\n'))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.log.Infof("%s %s %s %d %s", id, r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
