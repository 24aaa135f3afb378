// ABOUTME: HTTP handler methods for all server endpoints.
// ABOUTME: Covers canvas sessions, node and edge mutations, clipboard, undo/redo, generation, validation, and documents.

package editor

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/2389-research/flowcanvas/canvas"
	"github.com/2389-research/flowcanvas/diagram"
	"github.com/2389-research/flowcanvas/graph"
	"github.com/2389-research/flowcanvas/graph/validator"
	"github.com/2389-research/flowcanvas/persist"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads an optional JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// session resolves the {id} route parameter, writing 404 if it is unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, ok := s.store.Get(pathParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "canvas not found")
		return nil, false
	}
	return sess, true
}

// node resolves the {nodeId} route parameter within sess, writing 404 if it is unknown.
func node(w http.ResponseWriter, r *http.Request, sess *Session) (graph.Node, bool) {
	n, ok := sess.Canvas.Node(pathParam(r, "nodeId"))
	if !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return graph.Node{}, false
	}
	return n, true
}

func (s *Server) reject(w http.ResponseWriter, op, msg string) {
	s.metrics.Reject(op)
	writeError(w, http.StatusConflict, msg)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.store.Len()})
}

type createCanvasRequest struct {
	Name       string `json:"name"`
	DocumentID string `json:"documentId"`
}

type canvasResponse struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name,omitempty"`
	DocumentID  string                 `json:"documentId,omitempty"`
	State       canvas.State           `json:"state"`
	Diagnostics []validator.Diagnostic `json:"diagnostics,omitempty"`
}

// handleCreateCanvas opens a session, optionally hydrated from a saved document.
func (s *Server) handleCreateCanvas(w http.ResponseWriter, r *http.Request) {
	var req createCanvasRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var doc *persist.Document
	if req.DocumentID != "" {
		if !s.requireDocs(w) {
			return
		}
		d, err := s.docs.Load(r.Context(), req.DocumentID)
		if errors.Is(err, persist.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		if err != nil {
			s.logger.Error("load document", zap.String("document", req.DocumentID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load document")
			return
		}
		doc = &d
	}

	name := req.Name
	if name == "" && doc != nil {
		name = doc.Name
	}
	sess := s.store.Create(name)
	resp := canvasResponse{ID: sess.ID, Name: name}
	if doc != nil {
		resp.Diagnostics = persist.Hydrate(sess.Canvas, *doc)
		sess.BindDocument(doc.ID, name)
		resp.DocumentID = doc.ID
	}
	resp.State = sess.Canvas.GetState()
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	docID, name := sess.Document()
	writeJSON(w, http.StatusOK, canvasResponse{
		ID:         sess.ID,
		Name:       name,
		DocumentID: docID,
		State:      sess.Canvas.GetState(),
	})
}

func (s *Server) handleDeleteCanvas(w http.ResponseWriter, r *http.Request) {
	if !s.store.Delete(pathParam(r, "id")) {
		writeError(w, http.StatusNotFound, "canvas not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleValidate lints the current graph.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	snap := sess.Canvas.Snapshot()
	diags := validator.Lint(snap.Nodes, snap.Edges)
	if diags == nil {
		diags = []validator.Diagnostic{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":       !validator.HasErrors(diags),
		"diagnostics": diags,
	})
}

// handleDiagram exports the graph as DOT, or as SVG or PNG through Graphviz.
// Query: format (dot, svg, png; default svg), status (color by generation state).
func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = "svg"
	}
	_, name := sess.Document()
	state := sess.Canvas.GetState()
	dotText := diagram.ToDOT(state.Nodes, state.Edges, diagram.Options{
		Name:   name,
		Status: q.Get("status") != "false",
	})

	out, err := s.diagrams.Render(r.Context(), dotText, format)
	switch {
	case errors.Is(err, diagram.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, diagram.ErrGraphvizMissing):
		writeError(w, http.StatusNotImplemented, err.Error())
		return
	case err != nil:
		s.logger.Warn("render diagram", zap.String("canvas", sess.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to render diagram")
		return
	}
	w.Header().Set("Content-Type", diagram.ContentType(format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

type addNodeRequest struct {
	Category string         `json:"category"`
	Position graph.Position `json:"position"`
	Data     map[string]any `json:"data"`
}

type idResponse struct {
	ID string `json:"id"`
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req addNodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cat, err := graph.ParseCategory(req.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := graph.DecodeData(req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := sess.Canvas.AddNode(cat, req.Position, data)
	if id == "" {
		s.reject(w, "add_node", "node could not be added")
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

type updateNodeRequest struct {
	Data map[string]any `json:"data"`
}

func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	n, ok := node(w, r, sess)
	if !ok {
		return
	}
	var req updateNodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	patch, err := graph.DecodePatch(req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !sess.Canvas.UpdateNode(n.ID, patch) {
		s.reject(w, "update_node", "node could not be updated")
		return
	}
	updated, _ := sess.Canvas.Node(n.ID)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	n, ok := node(w, r, sess)
	if !ok {
		return
	}
	if !sess.Canvas.RemoveNode(n.ID) {
		s.reject(w, "remove_node", "node could not be removed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMoveNode(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	n, ok := node(w, r, sess)
	if !ok {
		return
	}
	var pos graph.Position
	if !decodeJSON(w, r, &pos) {
		return
	}
	if !sess.Canvas.MoveNode(n.ID, pos) {
		s.reject(w, "move_node", "node could not be moved")
		return
	}
	moved, _ := sess.Canvas.Node(n.ID)
	writeJSON(w, http.StatusOK, moved)
}

func (s *Server) handleDuplicateNode(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	n, ok := node(w, r, sess)
	if !ok {
		return
	}
	id := sess.Canvas.DuplicateNode(n.ID)
	if id == "" {
		s.reject(w, "duplicate_node", "node could not be duplicated")
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

type generateResponse struct {
	SinkID string `json:"sinkId"`
}

// handleGenerate submits a generation. The task outlives the request.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	n, ok := node(w, r, sess)
	if !ok {
		return
	}
	sink, ok := sess.Machine.Submit(r.Context(), n.ID)
	if !ok {
		s.reject(w, "submit", "generation inputs are not satisfied or the node is already generating")
		return
	}
	writeJSON(w, http.StatusAccepted, generateResponse{SinkID: sink})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	n, ok := node(w, r, sess)
	if !ok {
		return
	}
	if !sess.Machine.Cancel(n.ID) {
		s.reject(w, "cancel", "node is not generating")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// handlePreview renders a node's text as HTML. Raw HTML in the text is not passed through.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	n, ok := node(w, r, sess)
	if !ok {
		return
	}
	text := n.Data.Content
	if strings.TrimSpace(text) == "" {
		text = n.Data.SourceNodeContent
	}
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(text), &buf); err != nil {
		s.logger.Warn("render preview", zap.String("node", n.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to render preview")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type connectRequest struct {
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req connectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	for _, id := range []string{req.Source, req.Target} {
		if _, ok := sess.Canvas.Node(id); !ok {
			writeError(w, http.StatusNotFound, "node not found: "+id)
			return
		}
	}
	id := sess.Canvas.Connect(req.Source, req.SourceHandle, req.Target, req.TargetHandle)
	if id == "" {
		s.reject(w, "connect", "connection is not valid")
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if !sess.Canvas.Disconnect(pathParam(r, "edgeId")) {
		writeError(w, http.StatusNotFound, "edge not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type selectRequest struct {
	NodeID string `json:"nodeId"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !sess.Canvas.SetSelection(req.NodeID) {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetClipboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	entry, ok := sess.Canvas.Clipboard()
	if !ok {
		writeError(w, http.StatusNotFound, "clipboard is empty")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleSetClipboard replaces the clipboard with a {category, data, style} record.
func (s *Server) handleSetClipboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var entry canvas.ClipboardEntry
	if !decodeJSON(w, r, &entry) {
		return
	}
	if !sess.Canvas.SetClipboard(&entry) {
		writeError(w, http.StatusBadRequest, "invalid clipboard entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if !sess.Canvas.CopySelection() {
		s.reject(w, "copy", "nothing is selected")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pasteRequest struct {
	Position graph.Position `json:"position"`
}

func (s *Server) handlePaste(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req pasteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := sess.Canvas.PasteClipboard(req.Position)
	if id == "" {
		s.reject(w, "paste", "clipboard is empty")
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if !sess.Canvas.Undo() {
		s.reject(w, "undo", "nothing to undo")
		return
	}
	writeJSON(w, http.StatusOK, sess.Canvas.GetState())
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if !sess.Canvas.Redo() {
		s.reject(w, "redo", "nothing to redo")
		return
	}
	writeJSON(w, http.StatusOK, sess.Canvas.GetState())
}

type saveRequest struct {
	Name string `json:"name"`
}

// handleSave writes the minimal snapshot of a canvas to the repository.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if !s.requireDocs(w) {
		return
	}
	var req saveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	docID, name := sess.Document()
	if req.Name != "" {
		name = req.Name
	}
	if name == "" {
		name = "Untitled"
	}
	doc := persist.FromState(docID, name, sess.Canvas.GetState(), s.now())
	if err := s.docs.Save(r.Context(), doc); err != nil {
		s.logger.Error("save document", zap.String("document", doc.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save document")
		return
	}
	sess.BindDocument(doc.ID, doc.Name)
	writeJSON(w, http.StatusOK, doc.Summary())
}

func (s *Server) requireDocs(w http.ResponseWriter) bool {
	if s.docs == nil {
		writeError(w, http.StatusServiceUnavailable, "document storage is not configured")
		return false
	}
	return true
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if !s.requireDocs(w) {
		return
	}
	list, err := s.docs.List(r.Context())
	if err != nil {
		s.logger.Error("list documents", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	if list == nil {
		list = []persist.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	if !s.requireDocs(w) {
		return
	}
	doc, err := s.docs.Load(r.Context(), pathParam(r, "docId"))
	if errors.Is(err, persist.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		s.logger.Error("load document", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if !s.requireDocs(w) {
		return
	}
	err := s.docs.Delete(r.Context(), pathParam(r, "docId"))
	if errors.Is(err, persist.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		s.logger.Error("delete document", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
