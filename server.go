package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sitebooks/siteledger_backend/config"
	"github.com/sitebooks/siteledger_backend/models"
	"github.com/sitebooks/siteledger_backend/utils"
	"github.com/sitebooks/siteledger_backend/workflow"
	"gorm.io/gorm"
)

const defaultPort = "8080"

// RateLimiter throttles per client IP using a redis counter window.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := "ratelimit:" + c.ClientIP()

	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if exists == 0 {
		if err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err(); err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}
	c.Next()
}

// writeLedgerError maps the package error taxonomy onto HTTP responses. The
// structured fields (shortfall, obligation identity) ride along so clients
// can act on them instead of parsing messages.
func writeLedgerError(c *gin.Context, err error) {
	var invalid *models.InvalidRequestError
	var insufficient *models.InsufficientStockError
	var locked *models.SettlementLockedError
	var fifo *models.FifoOrderViolationError
	var conflict *models.ConcurrencyConflictError

	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error(), "reason": invalid.Reason})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusConflict, gin.H{
			"error":       insufficient.Error(),
			"material_id": insufficient.MaterialId,
			"brand_id":    insufficient.BrandId,
			"requested":   insufficient.Requested,
			"available":   insufficient.Available,
			"shortfall":   insufficient.Shortfall(),
		})
	case errors.As(err, &locked):
		c.JSON(http.StatusConflict, gin.H{
			"error":             locked.Error(),
			"obligation_kind":   locked.Kind,
			"obligation_id":     locked.ID,
			"settlement_status": locked.Status,
		})
	case errors.As(err, &fifo):
		c.JSON(http.StatusConflict, gin.H{
			"error":      fifo.Error(),
			"site_id":    fifo.SiteId,
			"settled_id": fifo.SettledID,
			"earlier_id": fifo.EarlierID,
		})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Error()})
	case errors.Is(err, utils.ErrorDuplicateRequest):
		// Idempotent retry: the original mutation already succeeded.
		c.JSON(http.StatusOK, gin.H{"status": "duplicate", "error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func requestContext(c *gin.Context, businessId string) context.Context {
	ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
	ctx = utils.SetUserNameInContext(ctx, "System")
	return ctx
}

type createBatchRequest struct {
	BusinessId string `json:"business_id" binding:"required"`
	models.NewCostBatch
}

func createBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		ctx := requestContext(c, req.BusinessId)
		batch, err := models.CreateCostBatch(ctx, &req.NewCostBatch)
		if err != nil {
			writeLedgerError(c, err)
			return
		}
		c.JSON(http.StatusCreated, batch)
	}
}

func listBatchesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Query("business_id")
		materialId, _ := strconv.Atoi(c.Query("material_id"))
		brandId, _ := strconv.Atoi(c.Query("brand_id"))
		if businessId == "" || materialId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "business_id and material_id are required"})
			return
		}

		batches, err := models.ListBatches(config.GetDB().WithContext(c.Request.Context()), businessId, materialId, brandId)
		if err != nil {
			writeLedgerError(c, err)
			return
		}
		c.JSON(http.StatusOK, batches)
	}
}

type allocateStockRequest struct {
	BusinessId     string          `json:"business_id" binding:"required"`
	MaterialId     int             `json:"material_id" binding:"required"`
	BrandId        int             `json:"brand_id"`
	ConsumerSiteId int             `json:"consumer_site_id" binding:"required"`
	UsageDate      time.Time       `json:"usage_date" binding:"required"`
	Quantity       decimal.Decimal `json:"quantity"`
}

func allocateStockHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req allocateStockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		db := config.GetDB().WithContext(requestContext(c, req.BusinessId))
		var records []*models.AllocationRecord
		err := db.Transaction(func(tx *gorm.DB) error {
			var txErr error
			records, txErr = workflow.AllocateStock(tx, logger, workflow.AllocateStockInput{
				BusinessId:     req.BusinessId,
				MaterialId:     req.MaterialId,
				BrandId:        req.BrandId,
				ConsumerSiteId: req.ConsumerSiteId,
				UsageDate:      req.UsageDate,
				Quantity:       req.Quantity,
			})
			return txErr
		})
		if err != nil {
			writeLedgerError(c, err)
			return
		}
		c.JSON(http.StatusCreated, records)
	}
}

type reverseAllocationRequest struct {
	BusinessId string `json:"business_id" binding:"required"`
	Reason     string `json:"reason" binding:"required"`
}

func reverseAllocationHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		allocationId, err := strconv.Atoi(c.Param("id"))
		if err != nil || allocationId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid allocation id"})
			return
		}
		var req reverseAllocationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		db := config.GetDB().WithContext(requestContext(c, req.BusinessId))
		var record *models.AllocationRecord
		err = db.Transaction(func(tx *gorm.DB) error {
			var txErr error
			record, txErr = workflow.ReverseAllocation(tx, logger, req.BusinessId, allocationId, req.Reason)
			return txErr
		})
		if err != nil {
			writeLedgerError(c, err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

type splitPoolRequest struct {
	BusinessId    string          `json:"business_id" binding:"required"`
	MaterialId    int             `json:"material_id"`
	FundingSiteId int             `json:"funding_site_id" binding:"required"`
	PoolDate      time.Time       `json:"pool_date" binding:"required"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Beneficiaries []struct {
		SiteId int             `json:"site_id"`
		Weight decimal.Decimal `json:"weight"`
	} `json:"beneficiaries"`
	ManualShares []struct {
		SiteId     int             `json:"site_id"`
		Percentage decimal.Decimal `json:"percentage"`
	} `json:"manual_shares"`
	Notes string `json:"notes"`
}

func splitPoolHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req splitPoolRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		input := workflow.SplitSharedPoolInput{
			BusinessId:    req.BusinessId,
			MaterialId:    req.MaterialId,
			FundingSiteId: req.FundingSiteId,
			PoolDate:      req.PoolDate,
			TotalAmount:   req.TotalAmount,
			Notes:         req.Notes,
		}
		for _, b := range req.Beneficiaries {
			input.Beneficiaries = append(input.Beneficiaries, workflow.ShareInput{SiteId: b.SiteId, Weight: b.Weight})
		}
		for _, s := range req.ManualShares {
			input.ManualShares = append(input.ManualShares, workflow.ManualShareInput{SiteId: s.SiteId, Percentage: s.Percentage})
		}

		db := config.GetDB().WithContext(requestContext(c, req.BusinessId))
		var pool *models.SharedPoolEntry
		var allocations []*models.PoolAllocation
		err := db.Transaction(func(tx *gorm.DB) error {
			var txErr error
			pool, allocations, txErr = workflow.SplitSharedPool(tx, logger, input)
			return txErr
		})
		if err != nil {
			writeLedgerError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"pool": pool, "allocations": allocations})
	}
}

type reversePoolShareRequest struct {
	BusinessId   string `json:"business_id" binding:"required"`
	Reason       string `json:"reason" binding:"required"`
	Redistribute bool   `json:"redistribute"`
}

func reversePoolShareHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		shareId, err := strconv.Atoi(c.Param("id"))
		if err != nil || shareId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pool allocation id"})
			return
		}
		var req reversePoolShareRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		db := config.GetDB().WithContext(requestContext(c, req.BusinessId))
		err = db.Transaction(func(tx *gorm.DB) error {
			return workflow.ReversePoolAllocation(tx, logger, req.BusinessId, shareId, req.Reason, req.Redistribute)
		})
		if err != nil {
			writeLedgerError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "reversed", "pool_allocation_id": shareId})
	}
}

type applyPaymentRequest struct {
	BusinessId  string          `json:"business_id" binding:"required"`
	PayerSiteId int             `json:"payer_site_id" binding:"required"`
	PaymentDate time.Time       `json:"payment_date" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Notes       string          `json:"notes"`
}

func applyPaymentHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req applyPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		db := config.GetDB().WithContext(requestContext(c, req.BusinessId))
		var payment *models.Payment
		var plan *workflow.WaterfallPlan
		err := db.Transaction(func(tx *gorm.DB) error {
			var txErr error
			payment, plan, txErr = workflow.ApplyPayment(tx, logger, workflow.ApplyPaymentInput{
				BusinessId:  req.BusinessId,
				PayerSiteId: req.PayerSiteId,
				PaymentDate: req.PaymentDate,
				Amount:      req.Amount,
				Notes:       req.Notes,
				RequestKey:  c.GetHeader("x-request-key"),
			})
			return txErr
		})
		if err != nil {
			writeLedgerError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"payment":      payment,
			"applications": plan.Applications,
			"unapplied":    plan.Unapplied,
		})
	}
}

func listObligationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		siteId, err := strconv.Atoi(c.Param("id"))
		if err != nil || siteId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid site id"})
			return
		}
		businessId := c.Query("business_id")
		if businessId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "business_id is required"})
			return
		}
		outstandingOnly := strings.EqualFold(c.Query("outstanding"), "true")

		db := config.GetDB().WithContext(c.Request.Context())
		obligations, err := models.ListObligationsForSite(db, businessId, siteId, outstandingOnly, false)
		if err != nil {
			writeLedgerError(c, err)
			return
		}
		c.JSON(http.StatusOK, obligations)
	}
}

func consolidationHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Query("business_id")
		materialId, _ := strconv.Atoi(c.Query("material_id"))
		brandId, _ := strconv.Atoi(c.Query("brand_id"))

		db := config.GetDB().WithContext(c.Request.Context())
		item, err := workflow.ConsolidateItem(db, logger, businessId, materialId, brandId)
		if err != nil {
			writeLedgerError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

type rebuildWaterfallRequest struct {
	BusinessId string `json:"business_id" binding:"required"`
	SiteId     int    `json:"site_id" binding:"required"`
}

func rebuildWaterfallHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req rebuildWaterfallRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		db := config.GetDB().WithContext(requestContext(c, req.BusinessId))
		err := db.Transaction(func(tx *gorm.DB) error {
			return workflow.RebuildWaterfall(tx, logger, req.BusinessId, req.SiteId)
		})
		if err != nil {
			writeLedgerError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "rebuilt", "site_id": req.SiteId})
	}
}

type integrityCheckRequest struct {
	BusinessId string `json:"business_id" binding:"required"`
}

func integrityCheckHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req integrityCheckRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		summary, err := workflow.RunLedgerIntegrityChecks(c.Request.Context(), config.GetDB(), logger, req.BusinessId)
		if err != nil {
			writeLedgerError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func auditExportHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		siteId, err := strconv.Atoi(c.Param("id"))
		if err != nil || siteId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid site id"})
			return
		}
		businessId := c.Query("business_id")
		if businessId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "business_id is required"})
			return
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=settlement-audit.xlsx")
		db := config.GetDB().WithContext(c.Request.Context())
		if err := workflow.ExportSettlementAudit(db, logger, c.Writer, businessId, siteId); err != nil {
			writeLedgerError(c, err)
			return
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// customErrorLogger logs only requests that accumulated gin errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getRedisClient(redisAddress string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the platform considers the revision
	// healthy. Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production requires an explicit allowlist via CORS_ALLOWED_ORIGINS;
	// everything else allows all for developer convenience.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "x-request-key")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Optional rate limiting.
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/batches", createBatchHandler())
	r.GET("/batches", listBatchesHandler())
	r.POST("/allocations", allocateStockHandler(logger))
	r.POST("/allocations/:id/reverse", reverseAllocationHandler(logger))
	r.POST("/pools", splitPoolHandler(logger))
	r.POST("/pools/allocations/:id/reverse", reversePoolShareHandler(logger))
	r.POST("/payments", applyPaymentHandler(logger))
	r.GET("/sites/:id/obligations", listObligationsHandler())
	r.GET("/sites/:id/audit-export", auditExportHandler(logger))
	r.GET("/consolidation", consolidationHandler(logger))
	// Ops tooling: re-derive one site's settlement state from its payments.
	r.POST("/internal/ops/waterfall/rebuild", rebuildWaterfallHandler(logger))
	r.POST("/internal/ops/integrity-check", integrityCheckHandler(logger))
	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations as
	// a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<minInt(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
