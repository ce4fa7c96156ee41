package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/mtaani/noticeboard/internal/auth"
	"github.com/mtaani/noticeboard/internal/board"
	"github.com/mtaani/noticeboard/internal/model"
	"github.com/mtaani/noticeboard/internal/notes"
	"github.com/mtaani/noticeboard/internal/websocket"
)

const maxImageBytes = 10 << 20

type NoteHandler struct {
	svc    *notes.Service
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewNoteHandler(svc *notes.Service, hub *websocket.Hub, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{svc: svc, hub: hub, logger: logger}
}

func (h *NoteHandler) broadcast(action, id string) {
	if h.hub != nil {
		h.hub.Broadcast(websocket.NewMessage("note", action, id, nil))
	}
}

type noteRequest struct {
	Type         string `json:"type"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
	Location     string `json:"location"`
	ImageURL     string `json:"image_url"`
}

// parseInput accepts either a JSON body or a multipart form; the multipart
// form may carry an "image" file part, which wins over any image_url field.
func parseInput(r *http.Request) (notes.Input, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		return parseMultipartInput(r)
	}

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return notes.Input{}, errors.New("invalid JSON")
	}
	return notes.Input{
		Type:         req.Type,
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		Location:     req.Location,
		ImageURL:     req.ImageURL,
	}, nil
}

func parseMultipartInput(r *http.Request) (notes.Input, error) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return notes.Input{}, errors.New("invalid form data")
	}

	in := notes.Input{
		Type:         r.FormValue("type"),
		Title:        strings.TrimSpace(r.FormValue("title")),
		Description:  r.FormValue("description"),
		ContactName:  r.FormValue("contact_name"),
		ContactPhone: r.FormValue("contact_phone"),
		Location:     r.FormValue("location"),
		ImageURL:     r.FormValue("image_url"),
	}

	file, header, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		return in, nil
	}
	if err != nil {
		return notes.Input{}, errors.New("invalid image upload")
	}
	defer file.Close()

	img, err := readImage(file, header)
	if err != nil {
		return notes.Input{}, err
	}
	in.Image = img
	return in, nil
}

func readImage(file multipart.File, header *multipart.FileHeader) (*notes.Image, error) {
	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return nil, errors.New("failed to read image")
	}
	if len(data) > maxImageBytes {
		return nil, errors.New("image too large")
	}
	return &notes.Image{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func identityPtr(r *http.Request) *auth.Identity {
	ident, ok := auth.FromContext(r.Context())
	if !ok {
		return nil
	}
	return &ident
}

func (h *NoteHandler) writeServiceError(w http.ResponseWriter, err error) {
	var ve *notes.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, notes.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "sign in required")
	case errors.Is(err, notes.ErrNotVerified):
		writeError(w, http.StatusForbidden, "verify your email to pin notes")
	case errors.Is(err, notes.ErrNotOwner):
		writeError(w, http.StatusForbidden, "only the owner may modify this note")
	case errors.Is(err, notes.ErrNotFound):
		writeError(w, http.StatusNotFound, "note not found")
	default:
		h.logger.Error("note operation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := parseInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	note, err := h.svc.Create(r.Context(), in, identityPtr(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.broadcast("created", note.ID)
	writeJSON(w, http.StatusCreated, note)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	in, err := parseInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	note, err := h.svc.Update(r.Context(), id, in, identityPtr(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.broadcast("updated", note.ID)
	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ident := identityPtr(r)

	if err := h.svc.Delete(r.Context(), id, ident); err != nil {
		h.writeServiceError(w, err)
		return
	}

	// An anonymous delete is a no-op; only an owner's delete changed the board.
	if ident != nil {
		h.broadcast("deleted", id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// noteDetail adds the advisory expiry countdown the detail view shows.
type noteDetail struct {
	model.Note
	DaysRemaining int  `json:"days_remaining"`
	Expired       bool `json:"expired"`
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	days := note.DaysRemaining(time.Now().UTC())
	writeJSON(w, http.StatusOK, noteDetail{
		Note:          *note,
		DaysRemaining: days,
		Expired:       days <= 0,
	})
}

// boardResponse is the full board read: every note newest first, the
// per-section totals, and the visible slice when a section tab was selected.
type boardResponse struct {
	Notes   []model.Note   `json:"notes"`
	Counts  map[string]int `json:"counts"`
	Visible []model.Note   `json:"visible,omitempty"`
}

// List serves GET /api/notes. The counts are always over the full board,
// independent of any search text; the visible slice applies the tab and
// search filters when a "type" query parameter is present.
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.svc.List(r.Context())
	if err != nil {
		h.logger.Error("list notes", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notes")
		return
	}
	if all == nil {
		all = []model.Note{}
	}

	resp := boardResponse{
		Notes:  all,
		Counts: board.Counts(all),
	}
	if tab := r.URL.Query().Get("type"); tab != "" {
		resp.Visible = board.Visible(all, tab, r.URL.Query().Get("q"))
	}

	writeJSON(w, http.StatusOK, resp)
}
