package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/daniarmadeit/idi-motors-bot/internal/archive"
	"github.com/daniarmadeit/idi-motors-bot/internal/config"
	"github.com/daniarmadeit/idi-motors-bot/internal/describe"
	"github.com/daniarmadeit/idi-motors-bot/internal/listing"
	"github.com/daniarmadeit/idi-motors-bot/internal/pipeline"
	"github.com/daniarmadeit/idi-motors-bot/internal/scheduler"
	"github.com/daniarmadeit/idi-motors-bot/internal/session"
	"github.com/daniarmadeit/idi-motors-bot/internal/transport/sink"
)

type Handler struct {
	sched     *scheduler.Scheduler
	parser    listing.Source
	transfer  *archive.Transfer
	registry  *sink.Registry
	store     *session.Store
	describer *describe.Generator
	cfg       *config.Config
	validator *validator.Validate
}

func New(sched *scheduler.Scheduler, parser listing.Source, transfer *archive.Transfer,
	registry *sink.Registry, store *session.Store, describer *describe.Generator, cfg *config.Config) *Handler {
	return &Handler{
		sched:     sched,
		parser:    parser,
		transfer:  transfer,
		registry:  registry,
		store:     store,
		describer: describer,
		cfg:       cfg,
		validator: validator.New(),
	}
}

// SubmitListing queues a vehicle-listing URL for processing. Responds 202
// with the request id and queue position, or 429 when the backlog is full.
func (h *Handler) SubmitListing(w http.ResponseWriter, r *http.Request) {
	var params SubmitListingParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if err := h.validator.Struct(params); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(validationErrorsToMap(err))
		return
	}

	source := &pipeline.ListingSource{
		Parser:   h.parser,
		Transfer: h.transfer,
		URL:      params.URL,
	}

	id := uuid.New()
	snk := h.registry.Track(id)
	source.OnCarData = snk.SetCar

	req := &pipeline.Request{ID: id, Source: source, Sink: snk, SubmittedAt: time.Now()}
	h.submit(w, r, req)
}

// SubmitDirect queues caller-supplied photos, skipping the scraper. Form
// field "photos" carries the files; "metadata" is optional plain text for
// the archive's car_data.txt.
func (h *Handler) SubmitDirect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxRequestBodyMB<<20)

	if err := r.ParseMultipartForm(h.cfg.Upload.MaxMultipartMemoryMB << 20); err != nil {
		writeMultipartError(w, err)
		return
	}

	if r.MultipartForm == nil || len(r.MultipartForm.File["photos"]) == 0 {
		writeJSONError(w, `missing photo files: form field key should be "photos"`, http.StatusBadRequest)
		return
	}

	var photos [][]byte
	for _, fh := range r.MultipartForm.File["photos"] {
		f, err := fh.Open()
		if err != nil {
			writeJSONError(w, "an error occurred while reading the upload: "+err.Error(), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeJSONError(w, "an error occurred while reading the upload: "+err.Error(), http.StatusBadRequest)
			return
		}

		fileType := mimetype.Detect(data).String()
		if err := validateMimeType(fileType); err != nil {
			writeJSONError(w, fmt.Sprintf("unsupported file type: %s", fileType), http.StatusBadRequest)
			return
		}
		photos = append(photos, data)
	}

	source := &pipeline.DirectSource{
		Photos:   photos,
		Metadata: r.FormValue("metadata"),
	}

	id := uuid.New()
	req := &pipeline.Request{ID: id, Source: source, Sink: h.registry.Track(id), SubmittedAt: time.Now()}
	h.submit(w, r, req)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, req *pipeline.Request) {
	pos, err := h.sched.Submit(context.WithoutCancel(r.Context()), req)
	if errors.Is(err, scheduler.ErrQueueFull) {
		h.registry.Drop(req.ID)
		writeJSONError(w, "request queue is full, try again later", http.StatusTooManyRequests)
		return
	}
	if err != nil {
		h.registry.Drop(req.ID)
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(SubmitResponse{ID: req.ID.String(), Position: pos})
}

// Status reports the request's current lifecycle view.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, ok := h.lookup(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(StatusResponse{
		RequestInfo:  st.Info(),
		PreviewCount: st.PreviewCount(),
	})
}

// Archive streams the finished ZIP and invalidates it, so a second fetch
// gets 404.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	st, ok := h.lookup(w, r)
	if !ok {
		return
	}

	info := st.Info()
	data, err := h.store.Archive(r.Context(), info.ID.String())
	if errors.Is(err, session.ErrNotFound) {
		writeJSONError(w, "archive not available", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.store.Invalidate(r.Context(), info.ID.String()); err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	name := info.ArchiveName
	if name == "" {
		name = "cleaned_photos.zip"
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(data)
}

// Preview streams one preview thumbnail by index.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	st, ok := h.lookup(w, r)
	if !ok {
		return
	}

	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSONError(w, "invalid preview index", http.StatusBadRequest)
		return
	}

	data := st.Preview(idx)
	if data == nil {
		writeJSONError(w, "preview not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(data)
}

// Description generates a sales blurb from the request's scraped listing
// data.
func (h *Handler) Description(w http.ResponseWriter, r *http.Request) {
	if !h.describer.Enabled() {
		writeJSONError(w, "description generation is not configured", http.StatusNotImplemented)
		return
	}

	st, ok := h.lookup(w, r)
	if !ok {
		return
	}

	car := st.Car()
	if car == nil {
		writeJSONError(w, "no listing data for this request", http.StatusConflict)
		return
	}

	text, err := h.describer.Describe(r.Context(), car.Text())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(DescriptionResponse{Description: text})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*sink.State, bool) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		writeJSONError(w, "invalid request id", http.StatusBadRequest)
		return nil, false
	}

	st, ok := h.registry.Get(id)
	if !ok {
		writeJSONError(w, "request not found", http.StatusNotFound)
		return nil, false
	}
	return st, true
}
