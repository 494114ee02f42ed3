package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"photobooth-kiosk/internal/booth"
	"photobooth-kiosk/internal/camera"
	"photobooth-kiosk/internal/delivery"
	"photobooth-kiosk/internal/metrics"
	"photobooth-kiosk/internal/middleware"
	"photobooth-kiosk/internal/services"
	"photobooth-kiosk/internal/store"
)

type RouterDeps struct {
	Booth         *booth.Controller
	Templates     *services.TemplateService
	Records       store.RecordStore
	Assets        *services.AssetService
	Cameras       *camera.Manager
	PrinterConfig *delivery.PrinterConfigStore
	Printer       delivery.Printer
	// LocalStorage is set when assets are kept on disk.
	LocalStorage *store.LocalStorage
	Metrics      *metrics.Metrics
	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer       prometheus.Gatherer
	BaseURL        string
	OperatorSecret string
}

func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(d.Metrics))

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	health := NewHealthHandler(d.Records, d.Cameras)
	router.GET("/health", health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	download := NewDownloadHandler(d.Assets, d.BaseURL)
	router.GET("/download/:transaction_id", download.Assets)
	router.GET("/download/:transaction_id/qr.png", download.QR)

	api := router.Group("/api/v1")

	catalog := NewCatalogHandler(d.Templates, d.Records)
	api.GET("/templates", catalog.Templates)
	api.GET("/filters", catalog.Filters)
	api.GET("/payment-methods", catalog.PaymentMethods)
	api.GET("/pricing", catalog.Pricing)

	b := NewBoothHandler(d.Booth)
	kiosk := api.Group("/booth")
	kiosk.GET("/state", b.State)
	kiosk.POST("/start", b.Start)
	kiosk.POST("/package", b.SelectPackage)
	kiosk.POST("/payment-method", b.SelectPaymentMethod)
	kiosk.POST("/template", b.SelectTemplate)
	kiosk.POST("/quantity", b.SelectQuantity)
	kiosk.POST("/payment/confirm", b.ConfirmPayment)
	kiosk.POST("/payment/cancel", b.CancelPayment)
	kiosk.POST("/capture", b.StartCapture)
	kiosk.POST("/retake/:index", b.Retake)
	kiosk.POST("/retake-all", b.RetakeAll)
	kiosk.POST("/filter", b.SelectFilter)
	kiosk.POST("/finalize", b.Finalize)
	kiosk.PUT("/email", b.SetEmail)
	kiosk.POST("/email", b.SendEmail)
	kiosk.POST("/print", b.Print)
	kiosk.POST("/finish", b.Finish)
	kiosk.POST("/back", b.Back)
	kiosk.POST("/reset", b.Reset)
	kiosk.GET("/captures/:index", b.Capture)
	kiosk.GET("/final.png", b.Final)
	kiosk.GET("/preview.jpg", b.Preview)
	kiosk.GET("/qris.png", b.PaymentQR)
	kiosk.GET("/delivery-qr.png", b.DeliveryQR)

	api.GET("/download/:transaction_id", download.Assets)

	if d.LocalStorage != nil {
		local := NewLocalStorageHandler(d.LocalStorage)
		api.GET("/local-storage/*path", local.Get)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.OperatorAuth(d.OperatorSecret))
	if d.PrinterConfig != nil && d.Printer != nil {
		printer := NewPrinterHandler(d.PrinterConfig, d.Printer)
		admin.GET("/printer-config", printer.GetConfig)
		admin.POST("/printer-config", printer.SaveConfig)
		admin.GET("/printers", printer.List)
	}
	templates := NewTemplateAdminHandler(d.Templates)
	admin.POST("/templates", templates.Create)

	return router
}
