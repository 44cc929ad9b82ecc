package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/obraguard/obraguard/internal/domain"
	"github.com/obraguard/obraguard/internal/storage"
)

const (
	// LogoMaxDimension is the bounding box logos are resized into.
	LogoMaxDimension = 512

	// LogoJPEGQuality is the encode quality for stored logos.
	LogoJPEGQuality = 85

	// LogoMaxUploadBytes caps raw logo uploads at 5 MB.
	LogoMaxUploadBytes = 5 << 20
)

// CompanyStore is the subset of repository queries the company service
// uses. *repository.Queries satisfies it.
type CompanyStore interface {
	CreateCompany(ctx context.Context, arg domain.CreateCompanyParams) (domain.Company, error)
	GetCompany(ctx context.Context, id int32, userID uuid.UUID) (domain.Company, error)
	ListCompanies(ctx context.Context, userID uuid.UUID) ([]domain.Company, error)
	UpdateCompany(ctx context.Context, arg domain.UpdateCompanyParams) (domain.Company, error)
	SetCompanyLogoURL(ctx context.Context, id int32, userID uuid.UUID, logoURL string) (domain.Company, error)
}

// CompanyService defines client company operations. All reads and writes
// are scoped to the owning user.
type CompanyService interface {
	Create(ctx context.Context, params domain.CreateCompanyParams) (*domain.Company, error)
	Get(ctx context.Context, id int32, userID uuid.UUID) (*domain.Company, error)
	List(ctx context.Context, userID uuid.UUID) ([]domain.Company, error)
	Update(ctx context.Context, params domain.UpdateCompanyParams) (*domain.Company, error)

	// UploadLogo stores a company logo for plans that include branding.
	// The image is normalized to a JPEG fitting within 512x512 before
	// storage. Returns domain.EFORBIDDEN when the user's plan does not
	// allow logo uploads.
	UploadLogo(ctx context.Context, user *domain.User, companyID int32, filename, contentType string, data io.Reader) (*domain.Company, error)
}

type companyService struct {
	store         CompanyStore
	subscriptions SubscriptionService
	files         storage.Storage
	logger        *slog.Logger
}

// NewCompanyService creates a new CompanyService.
func NewCompanyService(store CompanyStore, subscriptions SubscriptionService, files storage.Storage, logger *slog.Logger) CompanyService {
	return &companyService{
		store:         store,
		subscriptions: subscriptions,
		files:         files,
		logger:        logger,
	}
}

func (s *companyService) Create(ctx context.Context, params domain.CreateCompanyParams) (*domain.Company, error) {
	const op = "CompanyService.Create"

	if err := params.Validate(); err != nil {
		return nil, err
	}

	company, err := s.store.CreateCompany(ctx, params)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create company")
	}

	s.logger.Info("company created", "company_id", company.ID, "user_id", params.UserID)
	return &company, nil
}

func (s *companyService) Get(ctx context.Context, id int32, userID uuid.UUID) (*domain.Company, error) {
	const op = "CompanyService.Get"

	company, err := s.store.GetCompany(ctx, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, "company")
	}
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to retrieve company")
	}
	return &company, nil
}

func (s *companyService) List(ctx context.Context, userID uuid.UUID) ([]domain.Company, error) {
	const op = "CompanyService.List"

	companies, err := s.store.ListCompanies(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list companies")
	}
	return companies, nil
}

func (s *companyService) Update(ctx context.Context, params domain.UpdateCompanyParams) (*domain.Company, error) {
	const op = "CompanyService.Update"

	if params.Name != nil && *params.Name == "" {
		return nil, domain.Invalid(op, "Name cannot be empty")
	}

	company, err := s.store.UpdateCompany(ctx, params)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, "company")
	}
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to update company")
	}
	return &company, nil
}

func (s *companyService) UploadLogo(ctx context.Context, user *domain.User, companyID int32, filename, contentType string, data io.Reader) (*domain.Company, error) {
	const op = "CompanyService.UploadLogo"

	ent, err := s.subscriptions.ResolveEntitlement(ctx, user)
	if err != nil {
		return nil, err
	}
	if !ent.Plan.CanUploadLogo {
		return nil, domain.Forbidden(op, "Seu plano não permite upload de logo. Faça upgrade do seu plano.")
	}

	// Company must exist and belong to the user before touching storage.
	if _, err := s.Get(ctx, companyID, user.ID); err != nil {
		return nil, err
	}

	detected := storage.DetectContentType(contentType, filename, nil)
	if !storage.IsAllowedImageType(detected) {
		return nil, domain.Invalid(op, "Formato de imagem inválido. Use JPEG, PNG ou WebP.")
	}

	raw, err := io.ReadAll(io.LimitReader(data, LogoMaxUploadBytes+1))
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to read upload")
	}
	if len(raw) > LogoMaxUploadBytes {
		return nil, domain.Invalid(op, "Imagem muito grande. O limite é 5 MB.")
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, domain.Invalid(op, "Não foi possível processar a imagem enviada.")
	}

	// Normalize to a bounded JPEG so stored logos render consistently in
	// report headers.
	fitted := imaging.Fit(img, LogoMaxDimension, LogoMaxDimension, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(LogoJPEGQuality)); err != nil {
		return nil, domain.Internal(err, op, "Failed to encode logo")
	}

	key := storage.LogoKey(user.ID, companyID)
	err = s.files.Put(ctx, key, &buf, storage.PutOptions{
		ContentType: "image/jpeg",
		Overwrite:   true,
		Public:      true,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to store logo")
	}

	url, err := s.files.URL(ctx, key, 0)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to resolve logo URL")
	}

	company, err := s.store.SetCompanyLogoURL(ctx, companyID, user.ID, url)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, "company")
	}
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to save logo URL")
	}

	s.logger.Info("company logo uploaded", "company_id", companyID, "user_id", user.ID)
	return &company, nil
}
