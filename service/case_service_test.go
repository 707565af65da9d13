package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/douggil74/elite-recovery-app-sub004/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventLog records the order of persistence side effects so tests can
// assert on transition ordering.
type eventLog struct {
	events []string
}

func (l *eventLog) add(event string) {
	l.events = append(l.events, event)
}

// fakeDocumentStore keeps documents in memory.
type fakeDocumentStore struct {
	docs map[uuid.UUID]*models.Document
	log  *eventLog
}

func newFakeDocumentStore(log *eventLog) *fakeDocumentStore {
	return &fakeDocumentStore{docs: make(map[uuid.UUID]*models.Document), log: log}
}

func (f *fakeDocumentStore) Create(_ context.Context, doc *models.Document) error {
	stored := *doc
	f.docs[doc.ID] = &stored
	return nil
}

func (f *fakeDocumentStore) GetByID(_ context.Context, id uuid.UUID) (*models.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *doc
	return &out, nil
}

func (f *fakeDocumentStore) ListByCaseID(_ context.Context, _ uuid.UUID) ([]*models.Document, error) {
	return nil, nil
}

func (f *fakeDocumentStore) MarkProcessing(_ context.Context, id uuid.UUID) error {
	f.docs[id].Status = models.DocumentStatusProcessing
	f.log.add("processing")
	return nil
}

func (f *fakeDocumentStore) MarkDone(_ context.Context, id uuid.UUID, text string, pageCount int, usedOCR bool, pageErrors models.PageErrors) error {
	doc := f.docs[id]
	doc.Status = models.DocumentStatusDone
	doc.Text = &text
	doc.PageCount = pageCount
	doc.UsedOCR = usedOCR
	doc.PageErrors = pageErrors
	f.log.add("done")
	return nil
}

func (f *fakeDocumentStore) MarkError(_ context.Context, id uuid.UUID, message string) error {
	doc := f.docs[id]
	doc.Status = models.DocumentStatusError
	doc.ErrorMessage = &message
	f.log.add("error")
	return nil
}

func (f *fakeDocumentStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.docs, id)
	return nil
}

// fakeFactSetStore keeps fact sets in memory.
type fakeFactSetStore struct {
	sets []*models.FactSet
	log  *eventLog
}

func (f *fakeFactSetStore) Create(_ context.Context, fs *models.FactSet) error {
	f.sets = append(f.sets, fs)
	f.log.add("factset")
	return nil
}

func (f *fakeFactSetStore) ListByCaseID(_ context.Context, caseID uuid.UUID) ([]*models.FactSet, error) {
	var out []*models.FactSet
	for _, fs := range f.sets {
		if fs.CaseID == caseID {
			out = append(out, fs)
		}
	}
	return out, nil
}

func (f *fakeFactSetStore) DeleteByDocumentID(_ context.Context, _ uuid.UUID) error {
	return nil
}

// memStorage is an in-memory evidence file store.
type memStorage struct {
	files map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{files: make(map[string][]byte)}
}

func (s *memStorage) Upload(_ context.Context, documentID uuid.UUID, filename string, data io.Reader) (string, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	path := documentID.String() + "/" + filename
	s.files[path] = b
	return path, nil
}

func (s *memStorage) Download(_ context.Context, storagePath string) (io.ReadCloser, error) {
	b, ok := s.files[storagePath]
	if !ok {
		return nil, errors.New("no such file")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *memStorage) Delete(_ context.Context, storagePath string) error {
	delete(s.files, storagePath)
	return nil
}

// stubExtractor returns canned facts or a canned failure.
type stubExtractor struct {
	facts *models.Facts
	err   error
}

func (e stubExtractor) Extract(_ context.Context, _ string, _ *models.Facts) (*models.Facts, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.facts, nil
}

// brokenCaseStore fails every call the way a dropped connection would.
type brokenCaseStore struct{}

var errConnRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

func (brokenCaseStore) Create(_ context.Context, _ *models.Case) error { return errConnRefused }
func (brokenCaseStore) GetByID(_ context.Context, _ uuid.UUID) (*models.Case, error) {
	return nil, errConnRefused
}
func (brokenCaseStore) Update(_ context.Context, _ *models.Case) error { return errConnRefused }
func (brokenCaseStore) Delete(_ context.Context, _ uuid.UUID) error    { return errConnRefused }
func (brokenCaseStore) ListByAgentID(_ context.Context, _ uuid.UUID, _, _ int) ([]*models.Case, error) {
	return nil, errConnRefused
}

// missingCaseStore has no rows at all.
type missingCaseStore struct{ brokenCaseStore }

func (missingCaseStore) GetByID(_ context.Context, _ uuid.UUID) (*models.Case, error) {
	return nil, pgx.ErrNoRows
}

func seedDocument(store *memStorage, docs *fakeDocumentStore, text string) *models.Document {
	docID := uuid.New()
	path := docID.String() + "/notes.txt"
	store.files[path] = []byte(text)
	doc := &models.Document{
		ID:          docID,
		CaseID:      uuid.New(),
		Filename:    "notes.txt",
		MimeType:    "text/plain",
		StoragePath: path,
		Status:      models.DocumentStatusPending,
	}
	docs.docs[docID] = doc
	return doc
}

func TestProcessDocument_DoneOnlyAfterFactSetStored(t *testing.T) {
	log := &eventLog{}
	docs := newFakeDocumentStore(log)
	facts := &fakeFactSetStore{log: log}
	store := newMemStorage()
	doc := seedDocument(store, docs, "Subject last seen at 88 Oak St, Springfield.")

	svc := NewCaseService(
		WithDocumentRepository(docs),
		WithFactSetRepository(facts),
		WithStorage(store),
		WithNormalizer(NewNormalizer()),
		WithExtractor(stubExtractor{facts: &models.Facts{
			Addresses: []models.AddressFact{{Raw: "88 Oak St, Springfield"}},
		}}),
	)

	svc.ProcessDocument(context.Background(), doc.ID)

	stored := docs.docs[doc.ID]
	assert.Equal(t, models.DocumentStatusDone, stored.Status)
	require.Len(t, facts.sets, 1)
	assert.Equal(t, doc.ID, facts.sets[0].DocumentID)
	assert.Equal(t, "notes.txt", facts.sets[0].Source.Filename)

	// The done transition happens only once the fact set exists, so a
	// poller that sees done can rely on the evidence being queryable.
	assert.Equal(t, []string{"processing", "factset", "done"}, log.events)
}

func TestProcessDocument_ExtractFailureNeverMarksDone(t *testing.T) {
	log := &eventLog{}
	docs := newFakeDocumentStore(log)
	facts := &fakeFactSetStore{log: log}
	store := newMemStorage()
	doc := seedDocument(store, docs, "Subject last seen at 88 Oak St, Springfield.")

	svc := NewCaseService(
		WithDocumentRepository(docs),
		WithFactSetRepository(facts),
		WithStorage(store),
		WithNormalizer(NewNormalizer()),
		WithExtractor(stubExtractor{err: errors.New("model unavailable")}),
	)

	svc.ProcessDocument(context.Background(), doc.ID)

	stored := docs.docs[doc.ID]
	assert.Equal(t, models.DocumentStatusError, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Empty(t, facts.sets)

	// The document goes processing -> error without ever touching done.
	assert.Equal(t, []string{"processing", "error"}, log.events)
}

func TestGetCase_MissingRowMapsToNotFound(t *testing.T) {
	svc := NewCaseService(WithCaseRepository(missingCaseStore{}))

	_, err := svc.GetCase(context.Background(), uuid.New())

	assert.ErrorIs(t, err, ErrCaseNotFound)
}

func TestGetCase_RepositoryFailureIsNotNotFound(t *testing.T) {
	svc := NewCaseService(WithCaseRepository(brokenCaseStore{}))

	_, err := svc.GetCase(context.Background(), uuid.New())

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCaseNotFound)
	assert.ErrorIs(t, err, errConnRefused)
}

func TestGetDocument_RepositoryFailureIsNotNotFound(t *testing.T) {
	log := &eventLog{}
	docs := newFakeDocumentStore(log)
	svc := NewCaseService(WithDocumentRepository(docs))

	// A genuinely missing document still reads as not found.
	_, err := svc.GetDocument(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}
