package services

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"photobooth-kiosk/internal/compositor"
	"photobooth-kiosk/internal/models"
	"photobooth-kiosk/internal/store"
)

// TemplateService lists templates and loads their artwork. Artwork lives
// either at an absolute URL or in the templates bucket.
type TemplateService struct {
	records    store.RecordStore
	artwork    store.ObjectStorage
	httpClient *http.Client
	ttl        int

	mu    sync.Mutex
	cache map[string]image.Image
}

func NewTemplateService(records store.RecordStore, artwork store.ObjectStorage, signedURLTTL int) *TemplateService {
	if signedURLTTL <= 0 {
		signedURLTTL = 3600
	}
	return &TemplateService{
		records: records,
		artwork: artwork,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		ttl:   signedURLTTL,
		cache: make(map[string]image.Image),
	}
}

func isRemote(filePath string) bool {
	return strings.HasPrefix(filePath, "http://") || strings.HasPrefix(filePath, "https://")
}

// List returns the active templates with a displayable URL on each. A
// template whose artwork cannot be signed is still listed, without URL.
func (s *TemplateService) List(ctx context.Context) ([]models.Template, error) {
	templates, err := s.records.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	for i := range templates {
		url, err := s.ArtworkURL(ctx, &templates[i])
		if err != nil {
			log.Warn().Err(err).Str("template_id", templates[i].ID).Msg("failed to sign template artwork")
			continue
		}
		templates[i].URL = url
	}
	return templates, nil
}

// Get loads one template and its artwork so the template carries its
// native size.
func (s *TemplateService) Get(ctx context.Context, id string) (*models.Template, image.Image, error) {
	tpl, err := s.records.GetTemplate(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !tpl.IsActive {
		return nil, nil, fmt.Errorf("%w: template %s is not active", models.ErrInvalidTemplate, id)
	}
	art, err := s.LoadArtwork(ctx, tpl)
	if err != nil {
		return nil, nil, err
	}
	if url, err := s.ArtworkURL(ctx, tpl); err == nil {
		tpl.URL = url
	}
	return tpl, art, nil
}

func (s *TemplateService) ArtworkURL(ctx context.Context, tpl *models.Template) (string, error) {
	if isRemote(tpl.FilePath) {
		return tpl.FilePath, nil
	}
	if s.artwork == nil {
		return "", fmt.Errorf("no template storage configured for %s", tpl.FilePath)
	}
	return s.artwork.SignedURL(ctx, tpl.FilePath, s.ttl)
}

// LoadArtwork fetches and decodes the overlay. Width and Height are filled
// from the artwork when the record does not carry them.
func (s *TemplateService) LoadArtwork(ctx context.Context, tpl *models.Template) (image.Image, error) {
	s.mu.Lock()
	art, ok := s.cache[tpl.FilePath]
	s.mu.Unlock()

	if !ok {
		data, err := s.fetch(ctx, tpl.FilePath)
		if err != nil {
			return nil, fmt.Errorf("%w: artwork for %s: %v", models.ErrInvalidTemplate, tpl.ID, err)
		}
		art, err = compositor.DecodeImage(data)
		if err != nil {
			return nil, fmt.Errorf("%w: artwork for %s: %v", models.ErrInvalidTemplate, tpl.ID, err)
		}
		s.mu.Lock()
		s.cache[tpl.FilePath] = art
		s.mu.Unlock()
	}

	if tpl.Width <= 0 || tpl.Height <= 0 {
		tpl.Width, tpl.Height = art.Bounds().Dx(), art.Bounds().Dy()
	}
	return art, nil
}

func (s *TemplateService) fetch(ctx context.Context, filePath string) ([]byte, error) {
	if !isRemote(filePath) {
		if s.artwork == nil {
			return nil, fmt.Errorf("no template storage configured")
		}
		return s.artwork.Download(ctx, filePath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, filePath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download artwork: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("artwork download failed with status %d: %s", resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}

// NewTemplate is an operator upload: artwork bytes plus slot layout.
type NewTemplate struct {
	Name     string
	Type     models.PackageType
	Slots    []models.Slot
	FileName string
	Artwork  []byte
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Create stores the artwork under frames/{uuid}-{name} and records the
// template. The artwork must decode, and its size becomes the template size.
func (s *TemplateService) Create(ctx context.Context, in NewTemplate) (*models.Template, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, models.NewValidationError("name", "template name is required")
	}
	if in.Type != "" && !in.Type.Valid() {
		return nil, models.NewValidationError("type", fmt.Sprintf("unknown package type %q", in.Type))
	}
	if s.artwork == nil {
		return nil, fmt.Errorf("no template storage configured")
	}

	art, err := compositor.DecodeImage(in.Artwork)
	if err != nil {
		return nil, models.NewValidationError("file", "artwork is not a readable image")
	}

	fileName := unsafeName.ReplaceAllString(path.Base(in.FileName), "-")
	if fileName == "" || fileName == "." {
		fileName = "frame.png"
	}
	id := uuid.New()
	tpl := &models.Template{
		ID:       id.String(),
		Name:     strings.TrimSpace(in.Name),
		FilePath: fmt.Sprintf("frames/%s-%s", id, fileName),
		Width:    art.Bounds().Dx(),
		Height:   art.Bounds().Dy(),
		Type:     in.Type,
		IsActive: true,
		Slots:    in.Slots,
	}

	if err := s.artwork.Upload(ctx, tpl.FilePath, in.Artwork, http.DetectContentType(in.Artwork)); err != nil {
		return nil, fmt.Errorf("failed to upload artwork: %w", err)
	}
	if err := s.records.CreateTemplate(ctx, tpl); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[tpl.FilePath] = art
	s.mu.Unlock()

	if url, err := s.ArtworkURL(ctx, tpl); err == nil {
		tpl.URL = url
	}
	log.Info().Str("template_id", tpl.ID).Str("file_path", tpl.FilePath).Int("slots", len(tpl.Slots)).Msg("template created")
	return tpl, nil
}
