package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"drive-api/internal/tree"

	"github.com/go-chi/chi/v5"
)

const (
	defaultMaxUploadBytes = 1 << 30
	multipartMemory       = 32 << 20
)

func (s *Server) maxUploadBytes() int64 {
	if s.config != nil && s.config.Storage.MaxUploadBytes > 0 {
		return s.config.Storage.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}

type CreateFolderRequest struct {
	Name     string  `json:"name" validate:"required" example:"Documents"`
	ParentID *string `json:"parent_id,omitempty" example:"V1StGXR8_Z5jdHi6B-myT"`
}

// @Summary      Create a folder
// @Description  Creates an empty folder in the root or inside another folder. A folder with the same name in the same place is a conflict.
// @Tags         nodes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        folder  body      CreateFolderRequest  true  "Folder name and optional parent"
// @Success      201     {object}  tree.Projection
// @Failure      400     {string}  string "Invalid name or parent is not a folder"
// @Failure      401     {string}  string "Unauthorized"
// @Failure      404     {string}  string "Parent not found"
// @Failure      409     {string}  string "A folder with this name already exists"
// @Failure      500     {string}  string "Internal Server Error"
// @Router       /nodes/folder [post]
func (s *Server) CreateFolderHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var req CreateFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	folder, err := s.tree.CreateFolder(r.Context(), claims.UserID, req.ParentID, req.Name)
	if err != nil {
		s.writeTreeError(w, r, err, "Failed to create folder")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(folder)
}

// @Summary      List folder contents
// @Description  Lists the direct children of a folder, or of the root when parent_id is omitted. With sort=display folders come first, then names in order.
// @Tags         nodes
// @Produce      json
// @Security     BearerAuth
// @Param        parent_id  query     string  false  "Folder to list; omit for the root"
// @Param        sort       query     string  false  "Use 'display' for folders-first name order"
// @Success      200        {array}   tree.Projection
// @Failure      400        {string}  string "Parent is not a folder"
// @Failure      401        {string}  string "Unauthorized"
// @Failure      404        {string}  string "Parent not found"
// @Failure      500        {string}  string "Internal Server Error"
// @Router       /nodes [get]
func (s *Server) ListNodesHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	parentIDStr := r.URL.Query().Get("parent_id")
	var parentID *string
	if parentIDStr != "" {
		parentID = &parentIDStr
	}

	nodes, err := s.tree.List(r.Context(), claims.UserID, parentID)
	if err != nil {
		s.writeTreeError(w, r, err, "Failed to list nodes")
		return
	}
	if r.URL.Query().Get("sort") == "display" {
		tree.SortForDisplay(nodes)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(nodes)
}

// @Summary      Get node metadata
// @Tags         nodes
// @Produce      json
// @Security     BearerAuth
// @Param        nodeId  path      string  true  "Node ID"
// @Success      200     {object}  tree.Projection
// @Failure      401     {string}  string "Unauthorized"
// @Failure      404     {string}  string "Node not found"
// @Failure      500     {string}  string "Internal Server Error"
// @Router       /nodes/{nodeId} [get]
func (s *Server) GetNodeHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	node, err := s.tree.Get(r.Context(), claims.UserID, chi.URLParam(r, "nodeId"))
	if err != nil {
		s.writeTreeError(w, r, err, "Failed to retrieve node")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(node)
}

// @Summary      Upload a file
// @Description  Stores a file in the root or in a folder. Uploading a name that already exists replaces the stored content and keeps the node ID.
// @Tags         nodes
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file       formData  file    true   "File content"
// @Param        parent_id  formData  string  false  "Target folder; omit for the root"
// @Param        name       formData  string  false  "Name to store the file under; defaults to the uploaded file name"
// @Success      201        {object}  tree.Projection "Created"
// @Success      200        {object}  tree.Projection "Replaced an existing file"
// @Failure      400        {string}  string "Invalid form, name or parent"
// @Failure      401        {string}  string "Unauthorized"
// @Failure      404        {string}  string "Parent not found"
// @Failure      413        {string}  string "Upload too large"
// @Failure      502        {string}  string "Storage backend unavailable"
// @Failure      500        {string}  string "Internal Server Error"
// @Router       /nodes/file [post]
func (s *Server) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Error parsing multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, handler, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error retrieving the file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	var parentID *string
	if parentIDStr := r.FormValue("parent_id"); parentIDStr != "" {
		parentID = &parentIDStr
	}

	name := r.FormValue("name")
	if name == "" {
		name = handler.Filename
	}

	res, err := s.tree.Upload(r.Context(), claims.UserID, parentID, name, handler.Header.Get("Content-Type"), file)
	if err != nil {
		s.writeTreeError(w, r, err, "Failed to store file")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if res.Replaced {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusCreated)
	}
	json.NewEncoder(w).Encode(res.Node)
}

// @Summary      Download a file
// @Tags         nodes
// @Produce      octet-stream
// @Security     BearerAuth
// @Param        nodeId  path      string  true  "File node ID"
// @Success      200     {file}    file
// @Failure      400     {string}  string "Node is not a file"
// @Failure      401     {string}  string "Unauthorized"
// @Failure      404     {string}  string "File not found"
// @Failure      502     {string}  string "Storage backend unavailable"
// @Router       /nodes/{nodeId}/download [get]
func (s *Server) DownloadFileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	node, content, err := s.tree.Open(r.Context(), claims.UserID, chi.URLParam(r, "nodeId"))
	if err != nil {
		s.writeTreeError(w, r, err, "Failed to open file")
		return
	}
	defer content.Close()

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": node.Name}))
	if node.MediaType != nil && *node.MediaType != "" {
		w.Header().Set("Content-Type", *node.MediaType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if node.SizeBytes != nil {
		w.Header().Set("Content-Length", strconv.FormatInt(*node.SizeBytes, 10))
	}

	if _, err := io.Copy(w, content); err != nil {
		s.log.Warn().Err(err).Str("node_id", node.ID).Msg("Download interrupted")
	}
}

type UpdateNodeRequest struct {
	Name *string `json:"name,omitempty" example:"Renamed"`
	// ParentID moves the node; an empty string moves it to the root.
	ParentID *string `json:"parent_id,omitempty" example:"V1StGXR8_Z5jdHi6B-myT"`
}

// @Summary      Rename or move a node
// @Description  Renames the node, moves it to another folder, or both in one step; a rejected request changes nothing. An empty parent_id moves the node to the root. Moving a folder into its own subtree is rejected.
// @Tags         nodes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        nodeId  path      string             true  "Node ID"
// @Param        update  body      UpdateNodeRequest  true  "New name and/or parent"
// @Success      200     {object}  tree.Projection
// @Failure      400     {string}  string "Invalid request"
// @Failure      401     {string}  string "Unauthorized"
// @Failure      404     {string}  string "Node not found"
// @Failure      409     {string}  string "Name conflict or cycle"
// @Failure      500     {string}  string "Internal Server Error"
// @Router       /nodes/{nodeId} [patch]
func (s *Server) UpdateNodeHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	var req UpdateNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == nil && req.ParentID == nil {
		http.Error(w, "Nothing to update", http.StatusBadRequest)
		return
	}

	node, err := s.tree.Update(r.Context(), claims.UserID, nodeID, tree.NodeChange{
		Name:     req.Name,
		Move:     req.ParentID != nil,
		ParentID: req.ParentID,
	})
	if err != nil {
		s.writeTreeError(w, r, err, "Failed to update node")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(node)
}

// @Summary      Delete a node
// @Description  Deletes a file, or a folder together with everything inside it. Stored content that could not be removed is listed in blob_failures and retried later.
// @Tags         nodes
// @Produce      json
// @Security     BearerAuth
// @Param        nodeId  path      string  true  "Node ID"
// @Success      200     {object}  tree.DeleteResult
// @Failure      401     {string}  string "Unauthorized"
// @Failure      404     {string}  string "Node not found"
// @Failure      409     {string}  string "Folder hierarchy contains a cycle"
// @Failure      500     {string}  string "Internal Server Error"
// @Router       /nodes/{nodeId} [delete]
func (s *Server) DeleteNodeHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	result, err := s.tree.Delete(r.Context(), claims.UserID, chi.URLParam(r, "nodeId"))
	if err != nil {
		s.writeTreeError(w, r, err, "Failed to delete node")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
