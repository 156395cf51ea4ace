package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/matthew-heyner/family-finance/internal/auth"
	"github.com/matthew-heyner/family-finance/internal/log"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/query"
	"github.com/matthew-heyner/family-finance/internal/util"
)

// allowedReceiptTypes are matched against the sniffed content type, not
// the one the client claims.
var allowedReceiptTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// ReceiptHandler stores uploaded receipts AES-GCM encrypted on disk.
type ReceiptHandler struct {
	DB          *gorm.DB
	EncryptKey  []byte
	Dir         string
	MaxBytes    int64
	PageSize    int
	MaxPageSize int
}

func NewReceiptHandler(db *gorm.DB, encryptKey []byte, dir string, maxUploadMB, pageSize, maxPageSize int) *ReceiptHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &ReceiptHandler{
		DB:          db,
		EncryptKey:  encryptKey,
		Dir:         dir,
		MaxBytes:    int64(maxUploadMB) << 20,
		PageSize:    pageSize,
		MaxPageSize: maxPageSize,
	}
}

func (h *ReceiptHandler) load(c *gin.Context) (*models.User, *models.Receipt, error) {
	p, _, err := member(c)
	if err != nil {
		return nil, nil, err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return nil, nil, err
	}
	var r models.Receipt
	if err := first(h.DB.WithContext(c.Request.Context()), &r, "Receipt", id); err != nil {
		return nil, nil, err
	}
	if err := auth.AuthorizeFamilyScope(p, r.FamilyID); err != nil {
		return nil, nil, err
	}
	return p, &r, nil
}

// linkable checks that a transaction exists in family fid.
func (h *ReceiptHandler) linkable(db *gorm.DB, fid, txID uint) error {
	var tx models.Transaction
	if err := first(db, &tx, "Transaction", txID); err != nil {
		return err
	}
	if tx.FamilyID != fid {
		return util.ValidationError("Transaction %d is not in your family", txID)
	}
	return nil
}

func (h *ReceiptHandler) ListReceipts(c *gin.Context) {
	_, fid, err := member(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	v := c.Request.URL.Query()
	f, err := query.BuildReceiptFilter(v)
	if err != nil {
		util.Error(c, err)
		return
	}
	sort := query.SortFrom(v, query.CreatedSorts, query.CreatedDefaultSort)
	page := query.ParsePage(v, h.PageSize, h.MaxPageSize)

	receipts := []models.Receipt{}
	base := h.DB.WithContext(c.Request.Context()).Model(&models.Receipt{}).Where("family_id = ?", fid)
	res, err := query.Paginate(base, f, sort, page, &receipts)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.List(c, receipts, len(receipts), res.Total, res.Pagination)
}

func (h *ReceiptHandler) GetReceipt(c *gin.Context) {
	_, r, err := h.load(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, r)
}

// UploadReceipt accepts multipart field "file" and, optionally,
// "transactionId".
func (h *ReceiptHandler) UploadReceipt(c *gin.Context) {
	p, fid, err := member(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxBytes+1<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			util.Error(c, util.ValidationError("File cannot be larger than %d MB", h.MaxBytes>>20))
			return
		}
		util.Error(c, util.ValidationError("Please upload a file"))
		return
	}
	if fh.Size > h.MaxBytes {
		util.Error(c, util.ValidationError("File cannot be larger than %d MB", h.MaxBytes>>20))
		return
	}
	f, err := fh.Open()
	if err != nil {
		util.Error(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.MaxBytes+1))
	if err != nil {
		util.Error(c, fmt.Errorf("read upload: %w", err))
		return
	}
	if int64(len(data)) > h.MaxBytes {
		util.Error(c, util.ValidationError("File cannot be larger than %d MB", h.MaxBytes>>20))
		return
	}
	if len(data) == 0 {
		util.Error(c, util.ValidationError("Uploaded file is empty"))
		return
	}
	mime := http.DetectContentType(data)
	if !allowedReceiptTypes[mime] {
		util.Error(c, util.ValidationError("Unsupported file type %s", mime))
		return
	}

	ctx := c.Request.Context()
	db := h.DB.WithContext(ctx)
	var txID *uint
	if raw := strings.TrimSpace(c.PostForm("transactionId")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			util.Error(c, util.ValidationError("Invalid transactionId %q", raw))
			return
		}
		if err := h.linkable(db, fid, uint(id)); err != nil {
			util.Error(c, err)
			return
		}
		v := uint(id)
		txID = &v
	}

	enc, err := util.EncryptAES(h.EncryptKey, data)
	if err != nil {
		util.Error(c, fmt.Errorf("encrypt receipt: %w", err))
		return
	}
	if err := os.MkdirAll(h.Dir, 0o700); err != nil {
		util.Error(c, fmt.Errorf("create receipts dir: %w", err))
		return
	}
	stored := uuid.NewString() + ".bin"
	path := filepath.Join(h.Dir, stored)
	if err := os.WriteFile(path, enc, 0o600); err != nil {
		util.Error(c, fmt.Errorf("write receipt: %w", err))
		return
	}

	r := models.Receipt{
		OriginalFilename: truncateName(filepath.Base(fh.Filename), 255),
		StoredName:       stored,
		MimeType:         mime,
		Size:             int64(len(data)),
		ProcessingStatus: models.ReceiptPending,
		TransactionID:    txID,
		FamilyID:         fid,
		CreatedByID:      p.ID,
	}
	if err := db.Create(&r).Error; err != nil {
		_ = os.Remove(path)
		util.Error(c, fmt.Errorf("save receipt: %w", err))
		return
	}
	util.Created(c, r)
}

// DownloadReceipt decrypts the stored file and sends it as an attachment.
func (h *ReceiptHandler) DownloadReceipt(c *gin.Context) {
	_, r, err := h.load(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	enc, err := os.ReadFile(filepath.Join(h.Dir, r.StoredName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			util.Error(c, util.NotFoundError("File for receipt %d is missing", r.ID))
			return
		}
		util.Error(c, fmt.Errorf("read receipt: %w", err))
		return
	}
	plain, err := util.DecryptAES(h.EncryptKey, enc)
	if err != nil {
		util.Error(c, fmt.Errorf("decrypt receipt %d: %w", r.ID, err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", r.OriginalFilename))
	c.Data(http.StatusOK, r.MimeType, plain)
}

type updateReceiptReq struct {
	ExtractedData    *models.ExtractedData `json:"extractedData"`
	ProcessingStatus *models.ReceiptStatus `json:"processingStatus"`
	ProcessingError  *string               `json:"processingError"`
	TransactionID    *uint                 `json:"transactionId"`
}

// UpdateReceipt records extraction results and links the receipt to a
// transaction.
func (h *ReceiptHandler) UpdateReceipt(c *gin.Context) {
	p, r, err := h.load(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	if err := auth.AuthorizeOwnershipOrRole(p, auth.ActionUpdate, auth.Ownership{CreatorID: r.CreatedByID}, models.RoleAdmin); err != nil {
		util.Error(c, err)
		return
	}
	var req updateReceiptReq
	if err := bindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}

	db := h.DB.WithContext(c.Request.Context())
	if req.ExtractedData != nil {
		r.ExtractedData = req.ExtractedData
	}
	if req.ProcessingStatus != nil {
		if !req.ProcessingStatus.Valid() {
			util.Error(c, util.ValidationError("Invalid status %q", *req.ProcessingStatus))
			return
		}
		r.ProcessingStatus = *req.ProcessingStatus
	}
	if req.ProcessingError != nil {
		r.ProcessingError = truncateName(strings.TrimSpace(*req.ProcessingError), 500)
	}
	if req.TransactionID != nil {
		if err := h.linkable(db, r.FamilyID, *req.TransactionID); err != nil {
			util.Error(c, err)
			return
		}
		r.TransactionID = req.TransactionID
	}
	if err := db.Save(r).Error; err != nil {
		util.Error(c, fmt.Errorf("update receipt: %w", err))
		return
	}
	util.Success(c, r)
}

func (h *ReceiptHandler) DeleteReceipt(c *gin.Context) {
	p, r, err := h.load(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	if err := auth.AuthorizeOwnershipOrRole(p, auth.ActionDelete, auth.Ownership{CreatorID: r.CreatedByID}, models.RoleAdmin); err != nil {
		util.Error(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := h.DB.WithContext(ctx).Delete(r).Error; err != nil {
		util.Error(c, fmt.Errorf("delete receipt: %w", err))
		return
	}
	if err := os.Remove(filepath.Join(h.Dir, r.StoredName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.FromContext(ctx).WarnContext(ctx, "remove receipt file", "receipt_id", r.ID, log.FieldError, err)
	}
	util.Success(c, gin.H{})
}

func truncateName(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
