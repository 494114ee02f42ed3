package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photobooth-kiosk/internal/booth"
	"photobooth-kiosk/internal/camera"
	"photobooth-kiosk/internal/capture"
	"photobooth-kiosk/internal/compositor"
	"photobooth-kiosk/internal/delivery"
	"photobooth-kiosk/internal/handlers"
	"photobooth-kiosk/internal/metrics"
	"photobooth-kiosk/internal/services"
	"photobooth-kiosk/internal/store"
	"photobooth-kiosk/internal/testutil"
)

const operatorSecret = "operator-secret-for-tests-long-enough-for-hs256"

type server struct {
	router  *gin.Engine
	ctrl    *booth.Controller
	assets  *services.AssetService
	storage *store.LocalStorage
}

type serverOptions struct {
	device *camera.SyntheticDevice
}

func newServer(t *testing.T, opts serverOptions) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	if opts.device == nil {
		opts.device = camera.SolidColor(640, 480, color.RGBA{B: 255, A: 255})
	}

	dir := t.TempDir()
	local, err := store.NewLocalStorage(filepath.Join(dir, "objects"), "http://kiosk.test", []byte("local-secret"))
	require.NoError(t, err)

	records := store.NewMemoryStore()
	tpl := testutil.Template("duo", 600, 400, image.Rect(0, 0, 300, 400), image.Rect(300, 0, 600, 400))
	records.PutTemplate(tpl)
	art, err := compositor.EncodePNG(image.NewRGBA(image.Rect(0, 0, 600, 400)))
	require.NoError(t, err)
	require.NoError(t, local.Upload(ctx, tpl.FilePath, art, "image/png"))

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("photobooth", reg)

	cameras := camera.NewManager(opts.device, m)
	engine := capture.NewEngine(cameras, capture.Options{Countdown: 1, Tick: time.Millisecond, PostRoll: time.Millisecond}, m)

	assetOpts := services.DefaultAssetOptions()
	assetOpts.RetryDelay = time.Millisecond
	assets := services.NewAssetService(local, nil, assetOpts, m)
	templates := services.NewTemplateService(records, local, 600)

	printerConfig := delivery.NewPrinterConfigStore(filepath.Join(dir, "printer-settings.json"))
	printer := delivery.NewLPPrinter(printerConfig, 100, m).WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if name == "lpstat" {
			return []byte("Kiosk_Printer\nOffice\n"), nil
		}
		return nil, nil
	})

	ctrl := booth.NewController(booth.Deps{
		Records:    records,
		Templates:  templates,
		Engine:     engine,
		Compositor: compositor.New(m),
		Assets:     assets,
		Dispatcher: delivery.NewDispatcher("http://kiosk.test", delivery.NewHTTPEmailSender("", ""), printer),
		Metrics:    m,
	}, booth.Options{})

	router := handlers.NewRouter(handlers.RouterDeps{
		Booth:          ctrl,
		Templates:      templates,
		Records:        records,
		Assets:         assets,
		Cameras:        cameras,
		PrinterConfig:  printerConfig,
		Printer:        printer,
		LocalStorage:   local,
		Metrics:        m,
		Gatherer:       reg,
		BaseURL:        "http://kiosk.test",
		OperatorSecret: operatorSecret,
	})

	t.Cleanup(func() {
		_ = ctrl.Reset(context.Background(), "test_cleanup")
		assets.Wait()
		printer.Wait()
	})
	return &server{router: router, ctrl: ctrl, assets: assets, storage: local}
}

func (s *server) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req, _ := http.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func snapshotOf(t *testing.T, w *httptest.ResponseRecorder) booth.Snapshot {
	t.Helper()
	var snap booth.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap), w.Body.String())
	return snap
}

func operatorToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "operator-1"}).SignedString([]byte(operatorSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealth(t *testing.T) {
	s := newServer(t, serverOptions{})

	w := s.do("GET", "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"camera":"idle"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t, serverOptions{})
	s.do("GET", "/health", nil)

	w := s.do("GET", "/metrics", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "photobooth_http_requests_total")
}

func TestCatalog(t *testing.T) {
	s := newServer(t, serverOptions{})

	w := s.do("GET", "/api/v1/templates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"duo"`)
	assert.Contains(t, w.Body.String(), "/api/v1/local-storage/duo.png?token=")

	w = s.do("GET", "/api/v1/filters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"sepia"`)

	w = s.do("GET", "/api/v1/payment-methods", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "QRIS")
}

func TestBoothFlowOverHTTP(t *testing.T) {
	s := newServer(t, serverOptions{})

	steps := []struct {
		path string
		body any
		want booth.Step
	}{
		{"/api/v1/booth/start", nil, booth.StepPackage},
		{"/api/v1/booth/package", map[string]any{"package": "2d"}, booth.StepPayment},
		{"/api/v1/booth/payment-method", map[string]any{"method": "Tunai"}, booth.StepTemplate},
		{"/api/v1/booth/template", map[string]any{"template_id": "duo"}, booth.StepQuantity},
		{"/api/v1/booth/quantity", map[string]any{"quantity": 1}, booth.StepSession},
	}
	for _, st := range steps {
		w := s.do("POST", st.path, st.body)
		require.Equal(t, http.StatusOK, w.Code, "%s: %s", st.path, w.Body.String())
		assert.Equal(t, st.want, snapshotOf(t, w).Step, st.path)
	}

	w := s.do("POST", "/api/v1/booth/capture", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Eventually(t, func() bool {
		return snapshotOf(t, s.do("GET", "/api/v1/booth/state", nil)).Step == booth.StepFilter
	}, 2*time.Second, 10*time.Millisecond)

	w = s.do("GET", "/api/v1/booth/captures/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))

	w = s.do("POST", "/api/v1/booth/filter", map[string]any{"filter_id": "bw"})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do("POST", "/api/v1/booth/finalize", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := snapshotOf(t, w)
	assert.Equal(t, booth.StepDelivery, snap.Step)
	require.NotNil(t, snap.TransactionID)

	w = s.do("GET", "/api/v1/booth/final.png", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	s.assets.Wait()
	w = s.do("GET", "/download/"+snap.TransactionID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"asset":"final"`)
	assert.Contains(t, w.Body.String(), `"asset":"animation"`)

	w = s.do("GET", "/download/"+snap.TransactionID.String()+"/qr.png", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	// Email is not configured on this kiosk.
	w = s.do("POST", "/api/v1/booth/email", map[string]any{"email": "guest@example.com"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do("POST", "/api/v1/booth/finish", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, booth.StepFinish, snapshotOf(t, w).Step)
}

func TestBoothErrorsMapToStatus(t *testing.T) {
	s := newServer(t, serverOptions{})

	w := s.do("POST", "/api/v1/booth/finalize", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	s.do("POST", "/api/v1/booth/start", nil)
	w = s.do("POST", "/api/v1/booth/package", map[string]any{"package": "a3"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do("POST", "/api/v1/booth/package", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do("GET", "/api/v1/booth/final.png", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do("GET", "/download/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do("POST", "/api/v1/booth/reset", map[string]any{"reason": "operator"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, booth.StepIdle, snapshotOf(t, w).Step)
}

func TestCameraFailureIsServiceUnavailable(t *testing.T) {
	device := camera.SolidColor(64, 48, color.White)
	device.OpenErr = errors.New("device busy")
	s := newServer(t, serverOptions{device: device})

	s.do("POST", "/api/v1/booth/start", nil)
	s.do("POST", "/api/v1/booth/package", map[string]any{"package": "4r"})
	s.do("POST", "/api/v1/booth/payment-method", map[string]any{"method": "tunai"})
	s.do("POST", "/api/v1/booth/template", map[string]any{"template_id": "duo"})

	w := s.do("POST", "/api/v1/booth/quantity", map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	snap := snapshotOf(t, s.do("GET", "/api/v1/booth/state", nil))
	assert.Equal(t, booth.StepSession, snap.Step)
	assert.Contains(t, snap.CameraError, "device busy")

	w = s.do("GET", "/api/v1/booth/preview.jpg", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPaymentQR(t *testing.T) {
	s := newServer(t, serverOptions{})

	w := s.do("GET", "/api/v1/booth/qris.png", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	s.do("POST", "/api/v1/booth/start", nil)
	s.do("POST", "/api/v1/booth/package", map[string]any{"package": "4r"})
	s.do("POST", "/api/v1/booth/payment-method", map[string]any{"method": "QRIS"})
	s.do("POST", "/api/v1/booth/payment-method", map[string]any{"method": "QRIS"})
	s.do("POST", "/api/v1/booth/template", map[string]any{"template_id": "duo"})
	w = s.do("POST", "/api/v1/booth/quantity", map[string]any{"quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)
	snap := snapshotOf(t, w)
	assert.Equal(t, booth.StepQRIS, snap.Step)
	assert.Equal(t, int64(30000), snap.Total)

	w = s.do("GET", "/api/v1/booth/qris.png", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = s.do("POST", "/api/v1/booth/payment/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, booth.StepIdle, snapshotOf(t, w).Step)
}

func TestLocalStorageRequiresToken(t *testing.T) {
	s := newServer(t, serverOptions{})
	ctx := context.Background()
	require.NoError(t, s.storage.Upload(ctx, "transactions/x/final.png", []byte("png-bytes"), "image/png"))

	w := s.do("GET", "/api/v1/local-storage/transactions/x/final.png", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	url, err := s.storage.SignedURL(ctx, "transactions/x/final.png", 60)
	require.NoError(t, err)
	w = s.do("GET", strings.TrimPrefix(url, "http://kiosk.test"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png-bytes", w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
}

func TestPrinterAdmin(t *testing.T) {
	s := newServer(t, serverOptions{})

	w := s.do("GET", "/api/v1/admin/printer-config", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	auth := operatorToken(t)
	w = s.do("GET", "/api/v1/admin/printer-config", nil, "Authorization", auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"printerName":null}`, w.Body.String())

	w = s.do("POST", "/api/v1/admin/printer-config", map[string]any{"printerName": "Kiosk_Printer"}, "Authorization", auth)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do("GET", "/api/v1/admin/printer-config", nil, "Authorization", auth)
	assert.JSONEq(t, `{"printerName":"Kiosk_Printer"}`, w.Body.String())

	w = s.do("GET", "/api/v1/admin/printers", nil, "Authorization", auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"printers":["Kiosk_Printer","Office"]}`, w.Body.String())
}

func TestTemplateUpload(t *testing.T) {
	s := newServer(t, serverOptions{})

	art, err := compositor.EncodePNG(testutil.Solid(200, 300, color.Transparent))
	require.NoError(t, err)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("name", "Single"))
	require.NoError(t, mw.WriteField("type", "4r"))
	require.NoError(t, mw.WriteField("slots_config", `[{"id":"a","x":20,"y":20,"width":160,"height":200}]`))
	fw, err := mw.CreateFormFile("file", "single.png")
	require.NoError(t, err)
	_, err = fw.Write(art)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest("POST", "/api/v1/admin/templates", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", operatorToken(t))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"name":"Single"`)
	assert.Contains(t, w.Body.String(), `"width":200`)

	w = s.do("GET", "/api/v1/templates?type=4r", nil)
	assert.Contains(t, w.Body.String(), `"name":"Single"`)
}
