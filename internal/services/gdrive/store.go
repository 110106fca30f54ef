package gdrive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"transponster/internal/config"
	"transponster/internal/logging"
	"transponster/internal/services"
	"transponster/internal/services/ratelimit"
)

const (
	mimeFolder    = "application/vnd.google-apps.folder"
	mimeDocument  = "application/vnd.google-apps.document"
	mimePlainText = "text/plain"
	maxExportSize = 10 << 20
	fileFields    = "id, name, webViewLink"
)

// Document is a Google Doc or folder reference.
type Document struct {
	ID   string
	Name string
	Link string
}

// Store manages folders and documents on one shared drive.
type Store struct {
	svc       *drive.Service
	driveName string
	limiter   *ratelimit.Limiter
	logger    *slog.Logger

	mu      sync.Mutex
	driveID string
	folders map[string]Document

	docMu    sync.Mutex
	docLocks map[string]*docLock
}

// docLock serialises read-modify-write cycles on one document. refs counts
// holders and waiters so idle entries can be dropped.
type docLock struct {
	held chan struct{}
	refs int
}

// Option customizes the store.
type Option func(*Store)

// WithService injects a preconfigured Drive service.
func WithService(svc *drive.Service) Option {
	return func(s *Store) {
		s.svc = svc
	}
}

// WithLimiter paces API calls.
func WithLimiter(limiter *ratelimit.Limiter) Option {
	return func(s *Store) {
		s.limiter = limiter
	}
}

// WithLogger sets the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a store from the [drive] section. Unless WithService is given,
// cfg.CredentialsFile must hold a service-account key.
func New(ctx context.Context, cfg config.Drive, opts ...Option) (*Store, error) {
	s := &Store{
		driveName: strings.TrimSpace(cfg.SharedDriveName),
		limiter:   ratelimit.New(cfg.RequestsPerSecond, 1),
		logger:    logging.NewNop(),
		folders:   make(map[string]Document),
		docLocks:  make(map[string]*docLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.driveName == "" {
		return nil, services.Wrap(services.ErrConfiguration, "drive", "init", "shared_drive_name is empty", nil)
	}
	if s.svc != nil {
		return s, nil
	}

	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "drive", "init", "read credentials "+cfg.CredentialsFile, err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, drive.DriveScope)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "drive", "init", "parse credentials", err)
	}
	svc, err := drive.NewService(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "drive", "init", "create service", err)
	}
	s.svc = svc
	return s, nil
}

// SharedDriveID finds the configured shared drive, creating it when missing.
func (s *Store) SharedDriveID(ctx context.Context) (string, error) {
	s.mu.Lock()
	cached := s.driveID
	s.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	list, err := s.svc.Drives.List().Q("name = " + quote(s.driveName)).PageSize(10).Context(ctx).Do()
	if err != nil {
		return "", s.wrap("drives.list", err)
	}
	var id string
	for _, d := range list.Drives {
		if d.Name == s.driveName {
			id = d.Id
			break
		}
	}
	if id == "" {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
		created, err := s.svc.Drives.Create(uuid.NewString(), &drive.Drive{Name: s.driveName}).Context(ctx).Do()
		if err != nil {
			return "", s.wrap("drives.create", err)
		}
		id = created.Id
		s.logger.Info("created shared drive", logging.String("name", s.driveName), logging.String("drive_id", id))
	}

	s.mu.Lock()
	s.driveID = id
	s.mu.Unlock()
	return id, nil
}

// EnsureFolder returns the uploader's folder, creating it on first use.
// created reports whether this call made it.
func (s *Store) EnsureFolder(ctx context.Context, owner string) (Document, bool, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return Document{}, false, services.Wrap(services.ErrValidation, "drive", "folder", "owner name is empty", nil)
	}
	s.mu.Lock()
	folder, ok := s.folders[owner]
	s.mu.Unlock()
	if ok {
		return folder, false, nil
	}

	driveID, err := s.SharedDriveID(ctx)
	if err != nil {
		return Document{}, false, err
	}
	query := fmt.Sprintf("name = %s and mimeType = %s and %s in parents and trashed = false",
		quote(owner), quote(mimeFolder), quote(driveID))
	found, err := s.find(ctx, driveID, query)
	if err != nil {
		return Document{}, false, err
	}
	created := false
	if len(found) > 0 {
		folder = found[0]
	} else {
		if err := s.limiter.Wait(ctx); err != nil {
			return Document{}, false, err
		}
		file, err := s.svc.Files.Create(&drive.File{Name: owner, MimeType: mimeFolder, Parents: []string{driveID}}).
			SupportsAllDrives(true).Fields(fileFields).Context(ctx).Do()
		if err != nil {
			return Document{}, false, s.wrap("files.create folder", err)
		}
		folder = toDocument(file, folderLink)
		created = true
	}

	s.mu.Lock()
	s.folders[owner] = folder
	s.mu.Unlock()
	return folder, created, nil
}

// Create stores text as a new Google Doc in folderID. A .txt or .docx suffix
// is dropped from name.
func (s *Store) Create(ctx context.Context, folderID, name, text string) (Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Document{}, err
	}
	meta := &drive.File{Name: DocumentName(name), MimeType: mimeDocument, Parents: []string{folderID}}
	file, err := s.svc.Files.Create(meta).
		Media(strings.NewReader(text), googleapi.ContentType(mimePlainText)).
		SupportsAllDrives(true).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return Document{}, s.wrap("files.create", err)
	}
	return toDocument(file, documentLink), nil
}

// Append adds a section headed by heading to the end of the document. Appends
// to the same document from this process run one at a time.
func (s *Store) Append(ctx context.Context, documentID, heading, text string) error {
	unlock, err := s.lockDocument(ctx, documentID)
	if err != nil {
		return err
	}
	defer unlock()

	existing, err := s.Export(ctx, documentID)
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(existing, "\r\n"))
	b.WriteString("\n\n")
	if heading != "" {
		b.WriteString(heading)
		b.WriteString("\n\n")
	}
	b.WriteString(text)

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err = s.svc.Files.Update(documentID, &drive.File{}).
		Media(strings.NewReader(b.String()), googleapi.ContentType(mimePlainText)).
		SupportsAllDrives(true).Fields("id").Context(ctx).Do()
	if err != nil {
		return s.wrap("files.update", err)
	}
	return nil
}

func (s *Store) lockDocument(ctx context.Context, documentID string) (func(), error) {
	s.docMu.Lock()
	l, ok := s.docLocks[documentID]
	if !ok {
		l = &docLock{held: make(chan struct{}, 1)}
		s.docLocks[documentID] = l
	}
	l.refs++
	s.docMu.Unlock()

	release := func() {
		s.docMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.docLocks, documentID)
		}
		s.docMu.Unlock()
	}
	select {
	case l.held <- struct{}{}:
		return func() {
			<-l.held
			release()
		}, nil
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}
}

// Export returns the document as plain text.
func (s *Store) Export(ctx context.Context, documentID string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := s.svc.Files.Export(documentID, mimePlainText).Context(ctx).Download()
	if err != nil {
		return "", s.wrap("files.export", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxExportSize))
	if err != nil {
		return "", services.Wrap(services.ErrTransport, "drive", "files.export", "read body", err)
	}
	return strings.TrimPrefix(string(data), "\ufeff"), nil
}

// FindDocuments lists Google Docs on the shared drive named exactly name.
func (s *Store) FindDocuments(ctx context.Context, name string) ([]Document, error) {
	driveID, err := s.SharedDriveID(ctx)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("name = %s and mimeType = %s and trashed = false", quote(DocumentName(name)), quote(mimeDocument))
	return s.find(ctx, driveID, query)
}

func (s *Store) find(ctx context.Context, driveID, query string) ([]Document, error) {
	var out []Document
	call := s.svc.Files.List().Q(query).Corpora("drive").DriveId(driveID).
		IncludeItemsFromAllDrives(true).SupportsAllDrives(true).
		Fields(googleapi.Field("nextPageToken, files(" + fileFields + ", mimeType)")).PageSize(100)
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		list, err := call.Context(ctx).Do()
		if err != nil {
			return nil, s.wrap("files.list", err)
		}
		for _, f := range list.Files {
			link := documentLink
			if f.MimeType == mimeFolder {
				link = folderLink
			}
			out = append(out, toDocument(f, link))
		}
		if list.NextPageToken == "" {
			return out, nil
		}
		call.PageToken(list.NextPageToken)
	}
}

// DocumentName strips the transcript file extension.
func DocumentName(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".txt", ".docx":
		return strings.TrimSuffix(name, path.Ext(name))
	}
	return name
}

func documentLink(id string) string {
	return "https://docs.google.com/document/d/" + id + "/edit"
}

func folderLink(id string) string {
	return "https://drive.google.com/drive/folders/" + id
}

func toDocument(f *drive.File, fallback func(string) string) Document {
	link := f.WebViewLink
	if link == "" {
		link = fallback(f.Id)
	}
	return Document{ID: f.Id, Name: f.Name, Link: link}
}

// quote renders a Drive query string literal.
func quote(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `'`, `\'`)
	return "'" + value + "'"
}
