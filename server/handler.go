package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/chaos-io/clearpic/asset"
	"github.com/chaos-io/clearpic/billing"
	"github.com/chaos-io/clearpic/inference"
	"github.com/chaos-io/clearpic/normalize"
	"github.com/chaos-io/clearpic/pipeline"
)

type Handlers struct {
	store      *pipeline.Store
	executor   *pipeline.Executor
	batch      *pipeline.Coordinator
	packager   *pipeline.Packager
	normalizer *normalize.Normalizer
	assets     *asset.Registry
	ledger     *billing.LedgerClient
	sessions   *billing.SessionClient
	log        zerolog.Logger
}

func NewHandlers(
	store *pipeline.Store,
	executor *pipeline.Executor,
	batch *pipeline.Coordinator,
	packager *pipeline.Packager,
	normalizer *normalize.Normalizer,
	assets *asset.Registry,
	ledger *billing.LedgerClient,
	sessions *billing.SessionClient,
	log zerolog.Logger,
) *Handlers {
	return &Handlers{
		store:      store,
		executor:   executor,
		batch:      batch,
		packager:   packager,
		normalizer: normalizer,
		assets:     assets,
		ledger:     ledger,
		sessions:   sessions,
		log:        log.With().Str("component", "http-handlers").Logger(),
	}
}

// recordView is the wire shape of an image record. Handles never cross the
// API boundary; only their presence does.
type recordView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Stage        string `json:"stage"`
	LastError    string `json:"lastError,omitempty"`
	LastPrompt   string `json:"lastPrompt,omitempty"`
	Expanded     bool   `json:"expanded"`
	HasProcessed bool   `json:"hasProcessed"`
}

func toView(rec pipeline.ImageRecord) recordView {
	return recordView{
		ID:           rec.ID,
		Name:         rec.Name,
		Stage:        string(rec.Stage),
		LastError:    rec.LastError,
		LastPrompt:   rec.LastPrompt,
		Expanded:     rec.Expanded,
		HasProcessed: rec.Processed != nil,
	}
}

func toViews(recs []pipeline.ImageRecord) []recordView {
	out := make([]recordView, len(recs))
	for i, rec := range recs {
		out[i] = toView(rec)
	}
	return out
}

func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "clearpic editing engine",
		"endpoints": gin.H{
			"/api/images":         "POST - upload images, GET - list records",
			"/api/images/process": "POST - remove backgrounds for all pending images",
			"/api/images/export":  "GET - download all processed images as one archive",
			"/api/credits":        "GET - current credit balance",
			"/api/pricing":        "GET - pricing catalog",
		},
	})
}

// UploadImages ingests one or more files from a multipart form. Camera
// formats are converted before records are created; files the normalizer
// drops simply do not appear in the response.
func (h *Handlers) UploadImages(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "multipart form required"})
		return
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		fileHeaders = form.File["file"]
	}
	if len(fileHeaders) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "no files in form"})
		return
	}

	files := make([]normalize.File, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "unreadable file: " + fh.Filename})
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "unreadable file: " + fh.Filename})
			return
		}
		files = append(files, normalize.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	normalized := h.normalizer.Normalize(files)
	items := make([]pipeline.IngestItem, len(normalized))
	for i, f := range normalized {
		items[i] = pipeline.IngestItem{Name: f.Name, Handle: h.assets.New(f.Data)}
	}
	added := h.store.Ingest(items)

	c.JSON(http.StatusCreated, gin.H{
		"records": toViews(added),
		"dropped": len(files) - len(normalized),
	})
}

func (h *Handlers) ListImages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"records": toViews(h.store.List())})
}

func (h *Handlers) ClearImages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"removed": h.store.Clear()})
}

func (h *Handlers) RemoveImage(c *gin.Context) {
	if !h.store.Remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "image not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) UpdateImage(c *gin.Context) {
	var body struct {
		Expanded bool `json:"expanded"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}
	if !h.store.SetExpanded(c.Param("id"), body.Expanded) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "image not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// DownloadImage serves one record's processed bytes.
func (h *Handlers) DownloadImage(c *gin.Context) {
	rec, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "image not found"})
		return
	}
	if rec.Processed == nil {
		c.JSON(http.StatusConflict, gin.H{"detail": "image has not been processed"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+rec.ID+`.png"`)
	c.Data(http.StatusOK, "image/png", rec.Processed.Bytes())
}

func (h *Handlers) RemoveBackground(c *gin.Context) {
	rec, err := h.executor.RemoveBackground(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.transformError(c, rec, err)
		return
	}
	c.JSON(http.StatusOK, toView(rec))
}

func (h *Handlers) ReplaceBackground(c *gin.Context) {
	var body struct {
		Prompt string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}

	rec, err := h.executor.ReplaceBackground(c.Request.Context(), c.Param("id"), body.Prompt)
	if err != nil {
		h.transformError(c, rec, err)
		return
	}
	c.JSON(http.StatusOK, toView(rec))
}

// transformError maps the error taxonomy onto status codes. The failed
// record view rides along so the client can render the inline error state.
func (h *Handlers) transformError(c *gin.Context, rec pipeline.ImageRecord, err error) {
	status := http.StatusBadGateway

	var validationErr *pipeline.ValidationError
	var remoteErr *inference.RemoteProcessingError
	switch {
	case errors.Is(err, pipeline.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, pipeline.ErrAlreadyProcessing):
		status = http.StatusConflict
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &remoteErr):
		status = http.StatusBadGateway
	}

	resp := gin.H{"detail": err.Error()}
	if rec.ID != "" {
		resp["record"] = toView(rec)
	}
	c.JSON(status, resp)
}

func (h *Handlers) ProcessAll(c *gin.Context) {
	res := h.batch.ProcessAll(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"launched":  res.Launched,
		"succeeded": res.Succeeded,
		"failed":    res.Failed,
		"records":   toViews(h.store.List()),
	})
}

func (h *Handlers) ExportAll(c *gin.Context) {
	data, err := h.packager.ExportAll()
	if err != nil {
		if errors.Is(err, pipeline.ErrNothingToExport) {
			c.JSON(http.StatusConflict, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+pipeline.ArchiveName+`"`)
	c.Data(http.StatusOK, "application/zip", data)
}

func (h *Handlers) RewritePrompt(c *gin.Context) {
	var body struct {
		Prompt string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}

	rewritten, err := h.executor.RewritePrompt(c.Request.Context(), body.Prompt)
	if err != nil {
		var validationErr *pipeline.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rewritten_prompt": rewritten})
}

func (h *Handlers) CreditBalance(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "user_id is required"})
		return
	}
	balance, err := h.ledger.FetchBalance(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("balance fetch failed")
		c.JSON(http.StatusBadGateway, gin.H{"detail": "could not fetch balance"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"credits": balance})
}

func (h *Handlers) CreditHistory(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "user_id is required"})
		return
	}
	history, err := h.ledger.FetchHistory(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("history fetch failed")
		c.JSON(http.StatusBadGateway, gin.H{"detail": "could not fetch history"})
		return
	}

	type entry struct {
		billing.Transaction
		Signed int `json:"signed"`
	}
	entries := make([]entry, len(history))
	for i, tx := range history {
		entries[i] = entry{Transaction: tx, Signed: tx.Signed()}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": entries})
}

func (h *Handlers) PurchaseCredits(c *gin.Context) {
	h.checkout(c, billing.CheckoutPurchase, "packageId")
}

func (h *Handlers) CreateSubscription(c *gin.Context) {
	h.checkout(c, billing.CheckoutSubscription, "planId")
}

func (h *Handlers) checkout(c *gin.Context, kind billing.CheckoutKind, idField string) {
	var body map[string]string
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}
	selection, userID := body[idField], body["userId"]
	if selection == "" || userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": idField + " and userId are required"})
		return
	}

	target, err := h.sessions.StartCheckout(c.Request.Context(), kind, selection, userID)
	if err != nil {
		h.log.Error().Err(err).Str("kind", string(kind)).Msg("checkout session failed")
		c.JSON(http.StatusBadGateway, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": target.SessionID})
}

func (h *Handlers) CustomerPortal(c *gin.Context) {
	var body map[string]string
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}
	userID := body["userId"]
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "userId is required"})
		return
	}

	target, err := h.sessions.PortalSession(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("portal session failed")
		c.JSON(http.StatusBadGateway, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": target.URL})
}

func (h *Handlers) Pricing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"tiers":    billing.Tiers(),
		"packages": billing.Packages(),
	})
}
