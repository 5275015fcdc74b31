package documents

import (
	"io"
	"mime/multipart"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/aldoetobex/claims-backend/internal/auth"
	"github.com/aldoetobex/claims-backend/pkg/models"
)

// ===== DTOs =====

type FailedFile struct {
	Index    int    `json:"index"`
	FileName string `json:"file_name"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

type AttachResponse struct {
	Stored []models.Document `json:"stored"`
	Failed []FailedFile      `json:"failed"`
}

// ToResponse flattens per-file errors into stable codes.
func ToResponse(r *AttachResult) AttachResponse {
	out := AttachResponse{Stored: r.Stored, Failed: make([]FailedFile, 0, len(r.Failed))}
	if out.Stored == nil {
		out.Stored = []models.Document{}
	}
	for _, f := range r.Failed {
		code := "UPLOAD_FAILED"
		if _, c, ok := auth.ErrorCode(f.Err); ok {
			code = c
		}
		out.Failed = append(out.Failed, FailedFile{Index: f.Index, FileName: f.FileName, Code: code, Message: f.Err.Error()})
	}
	return out
}

type Handler struct {
	svc *Service
	ttl time.Duration
}

func NewHandler(svc *Service, ttl time.Duration) *Handler {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Handler{svc: svc, ttl: ttl}
}

// ViewerOf maps the request actor onto document access rules.
func ViewerOf(c *fiber.Ctx) Viewer {
	u := auth.CurrentUser(c)
	return Viewer{ID: u.ID, Staff: u.IsStaff()}
}

// UploadsFromForm reads files[] (or files, as sent by Swagger UI) from a multipart form.
// document_types[] pairs with files by index; document_type applies to the rest.
func UploadsFromForm(form *multipart.Form) []Upload {
	files := form.File["files[]"]
	if len(files) == 0 {
		files = form.File["files"]
	}
	types := form.Value["document_types[]"]
	fallback := ""
	if v := form.Value["document_type"]; len(v) > 0 {
		fallback = v[0]
	}

	out := make([]Upload, 0, len(files))
	for i, fh := range files {
		docType := fallback
		if i < len(types) && types[i] != "" {
			docType = types[i]
		}
		out = append(out, Upload{
			FileName:     fh.Filename,
			MimeType:     fh.Header.Get("Content-Type"),
			DocumentType: docType,
			Size:         fh.Size,
			Open:         func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return out
}

// Upload Claim Documents godoc
// @Summary      Attach documents to a claim
// @Description  Claim owner uploads JPEG/PNG/PDF/DOC/DOCX files (max 5MB each, 10 per claim)
// @Tags         documents
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id     path      string  true  "claim id (uuid)"
// @Param        files  formData  []file  true  "documents"
// @Success      201    {object}  AttachResponse
// @Failure      409    {object}  models.ErrorResponse
// @Failure      422    {object}  AttachResponse  "no file was accepted"
// @Router       /claims/{id}/documents [post]
func (h *Handler) Upload(c *fiber.Ctx) error {
	claimID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid claim id")
	}
	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart form required; use files[]")
	}

	res, err := h.svc.Attach(c.UserContext(), claimID, UploadsFromForm(form), ViewerOf(c))
	if err != nil {
		return err
	}

	status := fiber.StatusCreated
	if len(res.Stored) == 0 {
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(ToResponse(res))
}

// List Claim Documents godoc
// @Summary      List claim documents
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "claim id (uuid)"
// @Success      200  {array}   models.Document
// @Failure      403  {object}  models.ErrorResponse
// @Router       /claims/{id}/documents [get]
func (h *Handler) List(c *fiber.Ctx) error {
	claimID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid claim id")
	}
	docs, err := h.svc.List(c.UserContext(), claimID, ViewerOf(c))
	if err != nil {
		return err
	}
	return c.JSON(docs)
}

// Signed Download URL godoc
// @Summary      Get signed URL
// @Description  Claim owner or staff obtains a short-lived signed URL
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        docID  path string true "document id (uuid)"
// @Success      200  {object}  Link
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /documents/{docID}/signed-url [get]
func (h *Handler) SignedDownloadURL(c *fiber.Ctx) error {
	docID, err := uuid.Parse(c.Params("docID"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}
	link, err := h.svc.SignedURL(c.UserContext(), docID, h.ttl, ViewerOf(c))
	if err != nil {
		return err
	}
	return c.JSON(link)
}
