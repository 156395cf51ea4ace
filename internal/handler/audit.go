package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/matthew-heyner/family-finance/internal/log"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/query"
	"github.com/matthew-heyner/family-finance/internal/util"
)

// AuditHandler lists the family's audit trail for admins.
type AuditHandler struct {
	DB          *gorm.DB
	EncryptKey  []byte
	PageSize    int
	MaxPageSize int
}

func NewAuditHandler(db *gorm.DB, encryptKey []byte, pageSize, maxPageSize int) *AuditHandler {
	return &AuditHandler{DB: db, EncryptKey: encryptKey, PageSize: pageSize, MaxPageSize: maxPageSize}
}

type auditResp struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"userId"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Action    string    `json:"action"`
	Status    int       `json:"status"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
}

// decrypt returns "" for a field that no longer decrypts, e.g. after the
// encryption key was rotated.
func (h *AuditHandler) decrypt(c *gin.Context, id uint, enc string) string {
	if enc == "" {
		return ""
	}
	plain, err := util.DecryptString(h.EncryptKey, enc)
	if err != nil {
		log.FromContext(c.Request.Context()).WarnContext(c.Request.Context(), "undecryptable audit entry",
			"audit_id", id, log.FieldError, err)
		return ""
	}
	return plain
}

func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	_, fid, err := member(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	v := c.Request.URL.Query()
	f, err := query.BuildAuditFilter(v)
	if err != nil {
		util.Error(c, err)
		return
	}
	sort := query.SortFrom(v, query.CreatedSorts, query.CreatedDefaultSort)
	page := query.ParsePage(v, h.PageSize, h.MaxPageSize)

	var logs []models.AuditLog
	base := h.DB.WithContext(c.Request.Context()).Model(&models.AuditLog{}).Where("family_id = ?", fid)
	res, err := query.Paginate(base, f, sort, page, &logs)
	if err != nil {
		util.Error(c, err)
		return
	}

	items := make([]auditResp, 0, len(logs))
	for i := range logs {
		l := &logs[i]
		items = append(items, auditResp{
			ID:        l.ID,
			UserID:    l.UserID,
			Method:    l.Method,
			Path:      h.decrypt(c, l.ID, l.PathEnc),
			Action:    h.decrypt(c, l.ID, l.ActionEnc),
			Status:    l.Status,
			IP:        l.IP,
			UserAgent: l.UserAgent,
			CreatedAt: l.CreatedAt,
		})
	}
	util.List(c, items, len(items), res.Total, res.Pagination)
}
