package service

import (
	"bytes"
	"context"
	"database/sql"
	"image"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/obraguard/obraguard/internal/domain"
	"github.com/obraguard/obraguard/internal/storage"
)

// =============================================================================
// In-memory CompanyStore and Storage
// =============================================================================

type fakeCompanyStore struct {
	companies map[int32]domain.Company
	nextID    int32
}

func newFakeCompanyStore() *fakeCompanyStore {
	return &fakeCompanyStore{companies: make(map[int32]domain.Company), nextID: 1}
}

func (f *fakeCompanyStore) CreateCompany(_ context.Context, arg domain.CreateCompanyParams) (domain.Company, error) {
	c := domain.Company{
		ID:      f.nextID,
		UserID:  arg.UserID,
		Name:    arg.Name,
		CNPJ:    arg.CNPJ,
		Address: arg.Address,
		Phone:   arg.Phone,
	}
	f.companies[f.nextID] = c
	f.nextID++
	return c, nil
}

func (f *fakeCompanyStore) GetCompany(_ context.Context, id int32, userID uuid.UUID) (domain.Company, error) {
	c, ok := f.companies[id]
	if !ok || c.UserID != userID {
		return domain.Company{}, sql.ErrNoRows
	}
	return c, nil
}

func (f *fakeCompanyStore) ListCompanies(_ context.Context, userID uuid.UUID) ([]domain.Company, error) {
	var out []domain.Company
	for _, c := range f.companies {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCompanyStore) UpdateCompany(_ context.Context, arg domain.UpdateCompanyParams) (domain.Company, error) {
	c, ok := f.companies[arg.ID]
	if !ok || c.UserID != arg.UserID {
		return domain.Company{}, sql.ErrNoRows
	}
	if arg.Name != nil {
		c.Name = *arg.Name
	}
	f.companies[arg.ID] = c
	return c, nil
}

func (f *fakeCompanyStore) SetCompanyLogoURL(_ context.Context, id int32, userID uuid.UUID, logoURL string) (domain.Company, error) {
	c, ok := f.companies[id]
	if !ok || c.UserID != userID {
		return domain.Company{}, sql.ErrNoRows
	}
	c.LogoURL = logoURL
	f.companies[id] = c
	return c, nil
}

type fakeStorage struct {
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Put(_ context.Context, key string, data io.Reader, _ storage.PutOptions) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.objects[key] = b
	return nil
}

func (f *fakeStorage) Get(_ context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	b, ok := f.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), storage.ObjectInfo{Key: key, Size: int64(len(b))}, nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) URL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "http://localhost:8080/files/" + key, nil
}

func (f *fakeStorage) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

// stubEntitlements returns a fixed entitlement for any user.
type stubEntitlements struct {
	SubscriptionService
	ent domain.Entitlement
}

func (s *stubEntitlements) ResolveEntitlement(_ context.Context, _ *domain.User) (*domain.Entitlement, error) {
	ent := s.ent
	return &ent, nil
}

// =============================================================================
// Company Tests
// =============================================================================

func TestCompanyCreate_Validation(t *testing.T) {
	svc := NewCompanyService(newFakeCompanyStore(), nil, nil, testLogger())

	_, err := svc.Create(context.Background(), domain.CreateCompanyParams{UserID: uuid.New()})
	if domain.ErrorCode(err) != domain.EINVALID {
		t.Errorf("expected %q for missing name, got %v", domain.EINVALID, err)
	}
}

func TestCompanyGet_ScopedToOwner(t *testing.T) {
	store := newFakeCompanyStore()
	owner := uuid.New()
	created, _ := store.CreateCompany(context.Background(), domain.CreateCompanyParams{UserID: owner, Name: "Construtora A"})

	svc := NewCompanyService(store, nil, nil, testLogger())

	if _, err := svc.Get(context.Background(), created.ID, owner); err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}

	// Another user sees not-found, not forbidden, to avoid leaking existence.
	_, err := svc.Get(context.Background(), created.ID, uuid.New())
	if domain.ErrorCode(err) != domain.ENOTFOUND {
		t.Errorf("expected %q for foreign company, got %v", domain.ENOTFOUND, err)
	}
}

// =============================================================================
// Logo Upload Tests
// =============================================================================

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestUploadLogo_PlanGate(t *testing.T) {
	store := newFakeCompanyStore()
	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}
	created, _ := store.CreateCompany(context.Background(), domain.CreateCompanyParams{UserID: user.ID, Name: "Construtora A"})

	subs := &stubEntitlements{ent: domain.Entitlement{
		Plan: domain.Plan{Slug: "free", MonthlyLimit: 1}, // CanUploadLogo false
	}}
	svc := NewCompanyService(store, subs, newFakeStorage(), testLogger())

	_, err := svc.UploadLogo(context.Background(), user, created.ID, "logo.png", "image/png",
		bytes.NewReader(pngBytes(t, 10, 10)))
	if domain.ErrorCode(err) != domain.EFORBIDDEN {
		t.Fatalf("expected %q on the free plan, got %v", domain.EFORBIDDEN, err)
	}
	if msg := domain.ErrorMessage(err); !strings.Contains(msg, "não permite upload de logo") {
		t.Errorf("unexpected denial message %q", msg)
	}
}

func TestUploadLogo_RejectsNonImage(t *testing.T) {
	store := newFakeCompanyStore()
	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}
	created, _ := store.CreateCompany(context.Background(), domain.CreateCompanyParams{UserID: user.ID, Name: "Construtora A"})

	subs := &stubEntitlements{ent: domain.Entitlement{
		Plan: domain.Plan{Slug: "professional", CanUploadLogo: true},
	}}
	files := newFakeStorage()
	svc := NewCompanyService(store, subs, files, testLogger())

	_, err := svc.UploadLogo(context.Background(), user, created.ID, "report.pdf", "application/pdf",
		strings.NewReader("%PDF-1.4"))
	if domain.ErrorCode(err) != domain.EINVALID {
		t.Fatalf("expected %q for a PDF, got %v", domain.EINVALID, err)
	}
	if len(files.objects) != 0 {
		t.Error("rejected upload must not reach storage")
	}
}

func TestUploadLogo_NormalizesAndStores(t *testing.T) {
	store := newFakeCompanyStore()
	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}
	created, _ := store.CreateCompany(context.Background(), domain.CreateCompanyParams{UserID: user.ID, Name: "Construtora A"})

	subs := &stubEntitlements{ent: domain.Entitlement{
		Plan: domain.Plan{Slug: "business", CanUploadLogo: true},
	}}
	files := newFakeStorage()
	svc := NewCompanyService(store, subs, files, testLogger())

	// Oversized source image gets fitted into the 512px bounding box.
	company, err := svc.UploadLogo(context.Background(), user, created.ID, "logo.png", "image/png",
		bytes.NewReader(pngBytes(t, 1024, 768)))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	key := storage.LogoKey(user.ID, created.ID)
	stored, ok := files.objects[key]
	if !ok {
		t.Fatalf("expected object at %q", key)
	}

	img, err := imaging.Decode(bytes.NewReader(stored))
	if err != nil {
		t.Fatalf("stored logo is not a decodable image: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > LogoMaxDimension || bounds.Dy() > LogoMaxDimension {
		t.Errorf("logo not fitted: %dx%d", bounds.Dx(), bounds.Dy())
	}

	if company.LogoURL != "http://localhost:8080/files/"+key {
		t.Errorf("unexpected logo URL %q", company.LogoURL)
	}
}

func TestUploadLogo_ForeignCompany(t *testing.T) {
	store := newFakeCompanyStore()
	owner := uuid.New()
	created, _ := store.CreateCompany(context.Background(), domain.CreateCompanyParams{UserID: owner, Name: "Construtora A"})

	subs := &stubEntitlements{ent: domain.Entitlement{
		Plan: domain.Plan{Slug: "business", CanUploadLogo: true},
	}}
	svc := NewCompanyService(store, subs, newFakeStorage(), testLogger())

	other := &domain.User{ID: uuid.New(), Email: "other@example.com"}
	_, err := svc.UploadLogo(context.Background(), other, created.ID, "logo.png", "image/png",
		bytes.NewReader(pngBytes(t, 10, 10)))
	if domain.ErrorCode(err) != domain.ENOTFOUND {
		t.Errorf("expected %q for a foreign company, got %v", domain.ENOTFOUND, err)
	}
}
